package audit

import "context"

// Repository persists audit entries. Insert is the only operation: the
// trail is append-only and write-once, and read-side querying is out of
// scope for this service.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
}
