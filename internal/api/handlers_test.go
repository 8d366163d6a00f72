package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-procsup/internal/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *supervisor.Registry) {
	t.Helper()

	reg := supervisor.New(supervisor.Config{
		Logger:       testLogger(),
		GracePeriod:  100 * time.Millisecond,
		SignalSettle: 3 * time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
		reg.Wait()
	})

	srv := New(Config{Listen: "127.0.0.1:0", InstanceID: "test-instance", Version: "test"}, reg, testLogger())
	return srv, reg
}

func do(t *testing.T, srv *Server, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func waitExited(t *testing.T, reg *supervisor.Registry, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := reg.Get(id)
		if err != nil {
			t.Fatalf("Get(%q): %v", id, err)
		}
		if st.Exited {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("process %q did not exit", id)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	resp := decode[HealthzResponse](t, rr)
	if resp.Status != "ok" || resp.Instance != "test-instance" || resp.Tracked != 0 {
		t.Errorf("healthz = %+v", resp)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestLaunchAndRead(t *testing.T) {
	srv, reg := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "echo hello"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("launch status = %d, body %s", rr.Code, rr.Body)
	}
	res := decode[supervisor.LaunchResult](t, rr)
	if res.Status.ID != "echo-1" {
		t.Errorf("id = %q, want echo-1", res.Status.ID)
	}
	waitExited(t, reg, "echo-1")

	rr = do(t, srv, http.MethodGet, "/v1/processes/echo-1/output?lines=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read status = %d, body %s", rr.Code, rr.Body)
	}
	read := decode[supervisor.ReadResult](t, rr)
	want := []string{"hello", "[exit] Process exited with code 0"}
	if strings.Join(read.Lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", read.Lines, want)
	}
	if !read.Status.Exited || read.Status.ExitCode == nil || *read.Status.ExitCode != 0 {
		t.Errorf("status = %+v", read.Status)
	}

	// Clearing empties the buffer
	rr = do(t, srv, http.MethodGet, "/v1/processes/echo-1/output?clear=true", nil)
	if got := decode[supervisor.ReadResult](t, rr); !got.Cleared || len(got.Lines) != 2 {
		t.Errorf("clear read = %+v", got)
	}
	rr = do(t, srv, http.MethodGet, "/v1/processes/echo-1/output", nil)
	if got := decode[supervisor.ReadResult](t, rr); len(got.Lines) != 0 {
		t.Errorf("lines after clear = %q", got.Lines)
	}
}

func TestLaunch_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	testCases := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"empty command", supervisor.LaunchRequest{Command: "  "}, http.StatusBadRequest, "bad_request"},
		{"invalid json", "{", http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"command":"true","clients":3}`, http.StatusBadRequest, "bad_request"},
		{"negative lines", supervisor.LaunchRequest{Command: "true", MaxOutputLines: -1}, http.StatusBadRequest, "bad_request"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/v1/processes", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tc.status, rr.Body)
			}
			if got := decode[ErrorResponse](t, rr); got.Kind != tc.kind {
				t.Errorf("kind = %q, want %q", got.Kind, tc.kind)
			}
		})
	}
}

func TestLaunch_Duplicate(t *testing.T) {
	srv, _ := newTestServer(t)

	body := supervisor.LaunchRequest{Command: "sleep 30", ID: "svc"}
	if rr := do(t, srv, http.MethodPost, "/v1/processes", body); rr.Code != http.StatusCreated {
		t.Fatalf("first launch status = %d", rr.Code)
	}

	rr := do(t, srv, http.MethodPost, "/v1/processes", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Kind != "duplicate_id" || resp.ID != "svc" {
		t.Errorf("error = %+v", resp)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "sleep 30", ID: "a"})

	requests := []struct {
		method, target string
		body           any
	}{
		{http.MethodGet, "/v1/processes/nope", nil},
		{http.MethodGet, "/v1/processes/nope/output", nil},
		{http.MethodPost, "/v1/processes/nope/input", WriteRequest{Input: "x"}},
		{http.MethodDelete, "/v1/processes/nope/input", nil},
		{http.MethodPost, "/v1/processes/nope/kill", nil},
	}

	for _, req := range requests {
		t.Run(req.method+" "+req.target, func(t *testing.T) {
			rr := do(t, srv, req.method, req.target, req.body)
			if rr.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", rr.Code)
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.ID != "nope" || len(resp.Tracked) != 1 || resp.Tracked[0] != "a" {
				t.Errorf("error = %+v", resp)
			}
		})
	}
}

func TestWriteAndCloseInput(t *testing.T) {
	srv, reg := newTestServer(t)

	do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "cat", ID: "cat"})

	rr := do(t, srv, http.MethodPost, "/v1/processes/cat/input", WriteRequest{Input: "ping"})
	if rr.Code != http.StatusOK {
		t.Fatalf("write status = %d, body %s", rr.Code, rr.Body)
	}
	if res := decode[supervisor.WriteResult](t, rr); res.Bytes != 5 {
		t.Errorf("bytes = %d, want 5", res.Bytes)
	}

	noNewline := false
	rr = do(t, srv, http.MethodPost, "/v1/processes/cat/input", WriteRequest{Input: "pong", Newline: &noNewline})
	if res := decode[supervisor.WriteResult](t, rr); res.Bytes != 4 {
		t.Errorf("bytes = %d, want 4", res.Bytes)
	}

	rr = do(t, srv, http.MethodDelete, "/v1/processes/cat/input", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("close status = %d, body %s", rr.Code, rr.Body)
	}
	waitExited(t, reg, "cat")

	res, err := reg.Read("cat", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ping", "pong", "[exit] Process exited with code 0"}
	if strings.Join(res.Lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", res.Lines, want)
	}

	// Writing to an exited process conflicts
	rr = do(t, srv, http.MethodPost, "/v1/processes/cat/input", WriteRequest{Input: "late"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("late write status = %d, want 409", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Kind != "already_exited" {
		t.Errorf("kind = %q", resp.Kind)
	}
}

func TestKill(t *testing.T) {
	srv, reg := newTestServer(t)
	do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "sleep 30", ID: "nap"})

	rr := do(t, srv, http.MethodPost, "/v1/processes/nap/kill", KillRequest{Signal: "kill", Remove: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("kill status = %d, body %s", rr.Code, rr.Body)
	}
	res := decode[supervisor.KillResult](t, rr)
	if !res.Removed || res.Status.Code() != 137 {
		t.Errorf("kill result = %+v", res)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestKill_BadSignal(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "sleep 30", ID: "nap"})

	rr := do(t, srv, http.MethodPost, "/v1/processes/nap/kill", KillRequest{Signal: "SIGHUP"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCleanupAndList(t *testing.T) {
	srv, reg := newTestServer(t)

	do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "true"})
	do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "sleep 30"})
	waitExited(t, reg, "true-1")

	rr := do(t, srv, http.MethodGet, "/v1/processes", nil)
	list := decode[ListResponse](t, rr)
	if list.Tracked != 2 || list.Running != 1 {
		t.Errorf("list = %+v", list)
	}
	if list.Processes[0].ID != "true-1" || list.Processes[1].ID != "sleep-1" {
		t.Errorf("order = %s, %s", list.Processes[0].ID, list.Processes[1].ID)
	}

	rr = do(t, srv, http.MethodPost, "/v1/cleanup", nil)
	res := decode[supervisor.CleanupResult](t, rr)
	if len(res.Removed) != 1 || res.Removed[0] != "true-1" || len(res.Killed) != 0 {
		t.Errorf("cleanup = %+v", res)
	}

	rr = do(t, srv, http.MethodPost, "/v1/cleanup", CleanupRequest{KillAll: true})
	res = decode[supervisor.CleanupResult](t, rr)
	if len(res.Killed) != 1 || res.Killed[0] != "sleep-1" {
		t.Errorf("cleanup kill_all = %+v", res)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestTextFormat(t *testing.T) {
	srv, reg := newTestServer(t)
	do(t, srv, http.MethodPost, "/v1/processes", supervisor.LaunchRequest{Command: "echo hi", ID: "greet"})
	waitExited(t, reg, "greet")

	testCases := []struct {
		name   string
		target string
		header []string
		status int
		want   string
	}{
		{"query", "/v1/processes?format=text", nil, http.StatusOK, "1 tracked, 0 running"},
		{"accept header", "/v1/processes/greet/output", []string{"Accept", "text/plain"}, http.StatusOK, "  hi\n"},
		{"error", "/v1/processes/nope?format=text", nil, http.StatusNotFound, "Process nope not found. Tracked: greet"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tc.target, nil, tc.header...)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
				t.Errorf("Content-Type = %q", ct)
			}
			if !strings.Contains(rr.Body.String(), tc.want) {
				t.Errorf("body missing %q:\n%s", tc.want, rr.Body)
			}
		})
	}
}

func TestStart_ServesAndShutsDown(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	var resp *http.Response
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != "127.0.0.1:0" {
			resp, err = http.Get("http://" + addr + "/healthz")
			if err == nil {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if resp == nil {
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_BindError(t *testing.T) {
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	srv := New(Config{Listen: ln.Addr().String()}, supervisor.New(supervisor.Config{Logger: testLogger()}), testLogger())
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("Start should fail on a bound address")
	}
}
