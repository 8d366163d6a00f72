package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by Registry operations. All are caller-correctable;
// none affect other tracked processes.
var (
	// ErrDuplicateID is matched by *DuplicateIDError.
	ErrDuplicateID = errors.New("duplicate process id")

	// ErrNotFound is matched by *NotFoundError.
	ErrNotFound = errors.New("process not found")

	// ErrAlreadyExited is returned when operating on a terminated process.
	ErrAlreadyExited = errors.New("process already exited")

	// ErrStdinUnavailable is returned when the input pipe is missing or closed.
	ErrStdinUnavailable = errors.New("stdin unavailable")

	// ErrEmptyCommand is returned by Launch for a blank command.
	ErrEmptyCommand = errors.New("empty command")
)

// DuplicateIDError reports a launch whose id is already tracked.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("process %q already exists; kill it with remove or pick another id", e.ID)
}

// Is matches ErrDuplicateID.
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// NotFoundError reports an unknown id and lists what is tracked instead.
type NotFoundError struct {
	ID      string
	Tracked []string
}

func (e *NotFoundError) Error() string {
	if len(e.Tracked) == 0 {
		return fmt.Sprintf("process %q not found (no processes tracked)", e.ID)
	}
	return fmt.Sprintf("process %q not found (tracked: %s)", e.ID, strings.Join(e.Tracked, ", "))
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
