package note

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// The signature covers exactly these fields, canonicalized as one
// "<key>=<value>" line per field, keys in lexicographic order, joined with
// "\n". startedAt is RFC 3339 UTC. Volatile fields (updated_at, vitals
// display, UI state) are deliberately outside the allow-list so that
// re-verification stays stable after routine saves of non-clinical state.
//
// This ordering is the canonical form. It must never change, or every
// previously issued signature would stop verifying.
func canonicalContent(n *ClinicalNote) []byte {
	var b strings.Builder
	write := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('\n')
	}
	write("author", n.AuthorID.String())
	write("diagnosis", n.Diagnosis)
	write("examination", n.Examination)
	write("history", n.History)
	write("investigations", n.Investigations)
	write("plan", n.Plan)
	write("problemList", n.ProblemList)
	write("safety", n.Safety)
	write("startedAt", n.StartedAt.UTC().Format(time.RFC3339))
	return []byte(b.String())
}

// ComputeSignature hashes the note's clinically relevant fields. Pure; safe
// to call from any goroutine.
func ComputeSignature(n *ClinicalNote) Signature {
	sum := sha256.Sum256(canonicalContent(n))
	return Signature{
		Algorithm: SignatureAlgorithm,
		Digest:    hex.EncodeToString(sum[:]),
	}
}

// VerifyNote recomputes the hash from the note's current allow-listed fields
// and compares it to the stored signature. A mismatch is reported as an
// *IntegrityError and is never auto-corrected.
func VerifyNote(n *ClinicalNote) error {
	if n.DigitalSignature == nil || n.DigitalSignature.IsZero() {
		return ErrNotSigned
	}
	computed := ComputeSignature(n)
	if computed.Digest != n.DigitalSignature.Digest {
		return &IntegrityError{
			NoteID:   n.ID,
			Stored:   n.DigitalSignature.String(),
			Computed: computed.String(),
		}
	}
	return nil
}
