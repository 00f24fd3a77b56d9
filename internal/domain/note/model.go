package note

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a clinical note. A note is created as a
// draft and signed exactly once; there is no transition out of signed.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusSigned Status = "signed"
)

// UnassignedPatient is the sentinel patient reference carried by a note that
// has not yet been attached to a ward patient.
const UnassignedPatient = "unassigned"

// SignatureAlgorithm is the only hash algorithm in use.
const SignatureAlgorithm = "SHA256"

var signaturePattern = regexp.MustCompile(`^SHA256:[0-9a-f]{64}$`)

// Signature is the integrity hash committed at the moment of signing.
// Immutable once set; created only by ComputeSignature.
type Signature struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}

// String renders the persisted wire form, e.g. "SHA256:ab12...".
func (s Signature) String() string {
	return s.Algorithm + ":" + s.Digest
}

// IsZero reports whether the signature is unset.
func (s Signature) IsZero() bool {
	return s.Algorithm == "" && s.Digest == ""
}

// ParseSignature parses the persisted "SHA256:<64 hex>" form.
func ParseSignature(raw string) (Signature, error) {
	if !signaturePattern.MatchString(raw) {
		return Signature{}, fmt.Errorf("malformed signature %q", raw)
	}
	return Signature{
		Algorithm: SignatureAlgorithm,
		Digest:    strings.TrimPrefix(raw, "SHA256:"),
	}, nil
}

// ClinicalNote maps to the clinical_note table. Section content is mutable
// only while the note is a draft; once signed, only IsAmended may change and
// only through the amendment path.
type ClinicalNote struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        string     `db:"patient_id" json:"patient_id"`
	AuthorID         uuid.UUID  `db:"author_id" json:"author_id"`
	AuthorName       string     `db:"author_name" json:"author_name"`
	Diagnosis        string     `db:"diagnosis" json:"diagnosis"`
	History          string     `db:"history" json:"history"`
	Examination      string     `db:"examination" json:"examination"`
	Investigations   string     `db:"investigations" json:"investigations"`
	ProblemList      string     `db:"problem_list" json:"problem_list"`
	Plan             string     `db:"plan" json:"plan"`
	Safety           string     `db:"safety" json:"safety"`
	VitalSigns       string     `db:"vital_signs" json:"vital_signs"`
	CodeStatus       string     `db:"code_status" json:"code_status"`
	VTEProphylaxis   string     `db:"vte_prophylaxis" json:"vte_prophylaxis"`
	Status           Status     `db:"status" json:"status"`
	IsAmended        bool       `db:"is_amended" json:"is_amended"`
	DigitalSignature *Signature `db:"digital_signature" json:"digital_signature,omitempty"`
	SignedBy         *uuid.UUID `db:"signed_by" json:"signed_by,omitempty"`
	SignedByName     string     `db:"signed_by_name" json:"signed_by_name,omitempty"`
	SignedAt         *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	StartedAt        time.Time  `db:"started_at" json:"started_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// SectionPatch is a partial update to a draft's editable fields. Nil fields
// are left untouched. Status, signature, and attribution fields are not
// representable here, so no merge can move a note out of signed.
type SectionPatch struct {
	PatientID      *string `json:"patient_id,omitempty"`
	Diagnosis      *string `json:"diagnosis,omitempty"`
	History        *string `json:"history,omitempty"`
	Examination    *string `json:"examination,omitempty"`
	Investigations *string `json:"investigations,omitempty"`
	ProblemList    *string `json:"problem_list,omitempty"`
	Plan           *string `json:"plan,omitempty"`
	Safety         *string `json:"safety,omitempty"`
	VitalSigns     *string `json:"vital_signs,omitempty"`
	CodeStatus     *string `json:"code_status,omitempty"`
	VTEProphylaxis *string `json:"vte_prophylaxis,omitempty"`
}

// IsEmpty reports whether the patch carries no field writes.
func (p SectionPatch) IsEmpty() bool {
	return p == SectionPatch{}
}

// Merge overlays other on top of p, other winning where both are set.
func (p SectionPatch) Merge(other SectionPatch) SectionPatch {
	out := p
	if other.PatientID != nil {
		out.PatientID = other.PatientID
	}
	if other.Diagnosis != nil {
		out.Diagnosis = other.Diagnosis
	}
	if other.History != nil {
		out.History = other.History
	}
	if other.Examination != nil {
		out.Examination = other.Examination
	}
	if other.Investigations != nil {
		out.Investigations = other.Investigations
	}
	if other.ProblemList != nil {
		out.ProblemList = other.ProblemList
	}
	if other.Plan != nil {
		out.Plan = other.Plan
	}
	if other.Safety != nil {
		out.Safety = other.Safety
	}
	if other.VitalSigns != nil {
		out.VitalSigns = other.VitalSigns
	}
	if other.CodeStatus != nil {
		out.CodeStatus = other.CodeStatus
	}
	if other.VTEProphylaxis != nil {
		out.VTEProphylaxis = other.VTEProphylaxis
	}
	return out
}

// ApplyPatch writes the patch into the note. A signed note rejects every
// section write.
func (n *ClinicalNote) ApplyPatch(p SectionPatch) error {
	if n.Status == StatusSigned {
		return ErrNoteSigned
	}
	if p.PatientID != nil {
		n.PatientID = *p.PatientID
	}
	if p.Diagnosis != nil {
		n.Diagnosis = *p.Diagnosis
	}
	if p.History != nil {
		n.History = *p.History
	}
	if p.Examination != nil {
		n.Examination = *p.Examination
	}
	if p.Investigations != nil {
		n.Investigations = *p.Investigations
	}
	if p.ProblemList != nil {
		n.ProblemList = *p.ProblemList
	}
	if p.Plan != nil {
		n.Plan = *p.Plan
	}
	if p.Safety != nil {
		n.Safety = *p.Safety
	}
	if p.VitalSigns != nil {
		n.VitalSigns = *p.VitalSigns
	}
	if p.CodeStatus != nil {
		n.CodeStatus = *p.CodeStatus
	}
	if p.VTEProphylaxis != nil {
		n.VTEProphylaxis = *p.VTEProphylaxis
	}
	return nil
}
