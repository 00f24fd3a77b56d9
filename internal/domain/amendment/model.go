package amendment

import (
	"time"

	"github.com/google/uuid"
)

// Amendment is one append-only correction attached to a signed note. It
// references the signature that was valid when the amended note was signed
// (which never changes), so a verifier can always tell which attested
// version is being corrected. Records are never updated or removed.
type Amendment struct {
	ID                uuid.UUID `db:"id" json:"id"`
	NoteID            uuid.UUID `db:"note_id" json:"note_id"`
	AmenderID         uuid.UUID `db:"amender_id" json:"amender_id"`
	AmenderName       string    `db:"amender_name" json:"amender_name"`
	AmendedAt         time.Time `db:"amended_at" json:"amended_at"`
	Reason            string    `db:"reason" json:"reason"`
	ChangeDescription string    `db:"change_description" json:"change_description"`
	OriginalSignature string    `db:"original_signature" json:"original_signature"`
}
