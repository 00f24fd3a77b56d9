package amendment

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the durable amendment ledger for one ward. Append and read
// are the only operations; no update or delete exists on this collection.
type Repository interface {
	Append(ctx context.Context, a *Amendment) error
	ListByNote(ctx context.Context, noteID uuid.UUID) ([]*Amendment, error)
}
