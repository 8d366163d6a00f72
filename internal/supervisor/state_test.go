package supervisor

import (
	"encoding/json"
	"testing"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateLaunching, "launching"},
		{StateRunning, "running"},
		{StateSignaled, "signaled"},
		{StateExited, "exited"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsAlive(t *testing.T) {
	for _, s := range []State{StateLaunching, StateRunning, StateSignaled} {
		if !s.IsAlive() {
			t.Errorf("%s.IsAlive() = false, want true", s)
		}
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
	if StateExited.IsAlive() || !StateExited.IsTerminal() {
		t.Error("exited should be terminal and not alive")
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		State State `json:"state"`
	}{StateSignaled})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"state":"signaled"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var s State
	if err := s.UnmarshalText([]byte("exited")); err != nil || s != StateExited {
		t.Errorf("UnmarshalText(exited) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) should fail")
	}
}
