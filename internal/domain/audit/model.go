package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResourceType identifies the kind of clinical resource an entry refers to.
type ResourceType string

const (
	ResourcePatient    ResourceType = "patient"
	ResourceNote       ResourceType = "note"
	ResourceTask       ResourceType = "task"
	ResourceLab        ResourceType = "lab"
	ResourceMedication ResourceType = "medication"
	ResourceOrderSet   ResourceType = "order-set"
)

var validResourceTypes = map[ResourceType]bool{
	ResourcePatient: true, ResourceNote: true, ResourceTask: true,
	ResourceLab: true, ResourceMedication: true, ResourceOrderSet: true,
}

// Well-known actions recorded against notes.
const (
	ActionNoteCreate = "note.create"
	ActionNoteSign   = "note.sign"
	ActionNoteAmend  = "note.amend"
)

// FieldChange records a before/after pair for one field.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// SignMetadata is the payload recorded with a note.sign entry.
type SignMetadata struct {
	Signature        string `json:"signature"`
	WarningsAccepted int    `json:"warnings_accepted"`
}

// AmendMetadata is the payload recorded with a note.amend entry.
type AmendMetadata struct {
	AmendmentID       uuid.UUID `json:"amendment_id"`
	Reason            string    `json:"reason"`
	OriginalSignature string    `json:"original_signature"`
}

// maxExtraKeys bounds the open extension map so the escape hatch cannot
// degenerate back into an unbounded metadata bag.
const maxExtraKeys = 16

// Metadata is a tagged union over known action payloads. At most one of the
// typed payloads is set; Extra is a bounded open extension map.
type Metadata struct {
	Sign  *SignMetadata     `json:"sign,omitempty"`
	Amend *AmendMetadata    `json:"amend,omitempty"`
	Extra map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether no payload is present.
func (m Metadata) IsZero() bool {
	return m.Sign == nil && m.Amend == nil && len(m.Extra) == 0
}

func (m Metadata) validate() error {
	set := 0
	if m.Sign != nil {
		set++
	}
	if m.Amend != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("audit metadata: more than one typed payload set")
	}
	if len(m.Extra) > maxExtraKeys {
		return fmt.Errorf("audit metadata: extra map exceeds %d keys", maxExtraKeys)
	}
	return nil
}

// Entry is one append-only, write-once audit record. RecordedAt is assigned
// by the database server at insert time.
type Entry struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Action       string        `db:"action" json:"action"`
	ActorID      string        `db:"actor_id" json:"actor_id"`
	ActorName    string        `db:"actor_name" json:"actor_name"`
	ResourceType ResourceType  `db:"resource_type" json:"resource_type"`
	ResourceID   string        `db:"resource_id" json:"resource_id"`
	PatientID    string        `db:"patient_id" json:"patient_id,omitempty"`
	Changes      []FieldChange `db:"changes" json:"changes,omitempty"`
	SessionID    string        `db:"session_id" json:"session_id"`
	UserAgent    string        `db:"user_agent" json:"user_agent"`
	Metadata     Metadata      `db:"metadata" json:"metadata,omitempty"`
	RecordedAt   time.Time     `db:"recorded_at" json:"recorded_at"`
}

func (e *Entry) validate() error {
	if e.Action == "" {
		return fmt.Errorf("audit entry: action is required")
	}
	if e.ActorID == "" {
		return fmt.Errorf("audit entry: actor_id is required")
	}
	if !validResourceTypes[e.ResourceType] {
		return fmt.Errorf("audit entry: invalid resource type %q", e.ResourceType)
	}
	if e.ResourceID == "" {
		return fmt.Errorf("audit entry: resource_id is required")
	}
	return e.Metadata.validate()
}
