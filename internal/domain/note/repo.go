package note

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository owns the note's persisted state machine. Implementations must
// make Sign conditional on the stored status still being draft, and must not
// expose any operation that rewrites a signed note's sections.
type Repository interface {
	Create(ctx context.Context, n *ClinicalNote) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalNote, error)

	// UpdateDraftSections merge-patches section fields, guarded on the
	// stored status being draft. Returns ErrNoteSigned when the note has
	// been signed in the meantime (the stale flush case) and ErrNotFound
	// for an unknown id. It never touches status or signature columns.
	UpdateDraftSections(ctx context.Context, id uuid.UUID, p SectionPatch) error

	// Sign performs the one-way draft→signed transition with
	// compare-and-swap semantics on status. Returns *InvalidTransitionError
	// if the note is already signed.
	Sign(ctx context.Context, id uuid.UUID, by uuid.UUID, byName string, at time.Time, sig Signature) error

	// MarkAmended flips is_amended on an already signed note.
	MarkAmended(ctx context.Context, id uuid.UUID) error

	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*ClinicalNote, int, error)
}
