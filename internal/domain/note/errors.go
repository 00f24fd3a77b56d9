package note

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for operations on an unknown note id.
	ErrNotFound = errors.New("note not found")

	// ErrNoteSigned is returned when a section write reaches a signed note.
	ErrNoteSigned = errors.New("note is signed; sections are immutable")

	// ErrNotSigned is returned when verification is requested for a note
	// that carries no signature.
	ErrNotSigned = errors.New("note has no signature")
)

// InvalidTransitionError rejects a lifecycle operation that is not legal in
// the note's current state. The operation has no side effects.
type InvalidTransitionError struct {
	NoteID uuid.UUID
	From   Status
	Op     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s note %s in status %q", e.Op, e.NoteID, e.From)
}

// ValidationBlockedError rejects a sign attempt with open blockers. The note
// is left untouched.
type ValidationBlockedError struct {
	Result ValidationResult
}

func (e *ValidationBlockedError) Error() string {
	return fmt.Sprintf("sign blocked by %d open documentation issue(s)", len(e.Result.Blockers))
}

// AuditWriteError reports that a state transition committed durably but the
// coupled audit entry could not be written. The transition is not rolled
// back; callers must surface a reconciliation warning.
type AuditWriteError struct {
	Action string
	Err    error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("%s committed but audit write failed: %v", e.Action, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// IntegrityError reports a mismatch between a note's stored signature and
// the hash recomputed from its current content. Never auto-repaired.
type IntegrityError struct {
	NoteID   uuid.UUID
	Stored   string
	Computed string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch for note %s: stored %s, computed %s", e.NoteID, e.Stored, e.Computed)
}
