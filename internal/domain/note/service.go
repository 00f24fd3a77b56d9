package note

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardnote/wardnote/internal/domain/amendment"
	"github.com/wardnote/wardnote/internal/domain/audit"
	"github.com/wardnote/wardnote/internal/platform/auth"
)

// Amendments is the slice of the amendment ledger the note state machine
// drives.
type Amendments interface {
	Append(ctx context.Context, noteID, amenderID uuid.UUID, amenderName, reason, changeDescription, originalSignature string) (*amendment.Amendment, error)
	ListByNote(ctx context.Context, noteID uuid.UUID) ([]*amendment.Amendment, error)
}

// AuditLog records identity-attributable actions against clinical resources.
type AuditLog interface {
	Log(ctx context.Context, sess auth.Session, e audit.Entry) (*audit.Entry, error)
}

// Service owns the note lifecycle: draft creation and editing, the one-way
// sign transition, amendments, and verification.
type Service struct {
	notes      Repository
	amendments Amendments
	audit      AuditLog
	locks      *Locks
	logger     zerolog.Logger
}

func NewService(notes Repository, amendments Amendments, auditLog AuditLog, locks *Locks, logger zerolog.Logger) *Service {
	return &Service{
		notes:      notes,
		amendments: amendments,
		audit:      auditLog,
		locks:      locks,
		logger:     logger,
	}
}

// NoteLocks exposes the per-note lock registry so the draft manager can
// serialize its flushes against sign and amend.
func (s *Service) NoteLocks() *Locks { return s.locks }

// StartDraft creates a new draft note for the given author. The audit entry
// for creation is best-effort: a draft is not yet a compliance record.
func (s *Service) StartDraft(ctx context.Context, sess auth.Session, authorID uuid.UUID, authorName, patientID string) (*ClinicalNote, error) {
	if patientID == "" {
		patientID = UnassignedPatient
	}
	now := time.Now().UTC()
	n := &ClinicalNote{
		ID:         uuid.New(),
		PatientID:  patientID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Status:     StatusDraft,
		StartedAt:  now,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}

	if _, err := s.audit.Log(ctx, sess, audit.Entry{
		Action:       audit.ActionNoteCreate,
		ActorID:      authorID.String(),
		ActorName:    authorName,
		ResourceType: audit.ResourceNote,
		ResourceID:   n.ID.String(),
		PatientID:    n.PatientID,
	}); err != nil {
		s.logger.Warn().Err(err).Stringer("note_id", n.ID).Msg("audit write failed for draft creation")
	}
	return n, nil
}

// GetNote returns the note with its current stored state.
func (s *Service) GetNote(ctx context.Context, id uuid.UUID) (*ClinicalNote, error) {
	return s.notes.GetByID(ctx, id)
}

// ListByPatient returns a patient's notes, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*ClinicalNote, int, error) {
	return s.notes.ListByPatient(ctx, patientID, limit, offset)
}

// UpdateSections merge-patches a draft's sections. Serialized against sign
// and autosave flushes through the shared per-note lock.
func (s *Service) UpdateSections(ctx context.Context, id uuid.UUID, p SectionPatch) error {
	if p.IsEmpty() {
		return nil
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.notes.UpdateDraftSections(ctx, id, p)
}

// ValidateForSigning classifies the note's current stored state. The result
// is advisory for the UI; Sign re-validates at commit time regardless.
func (s *Service) ValidateForSigning(ctx context.Context, id uuid.UUID) (ValidationResult, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return ValidationResult{}, err
	}
	return Validate(n), nil
}

// Sign performs the irreversible draft→signed transition. The validator is
// re-run here against the stored note immediately before the commit, so a
// stale result from earlier in the editing session is never trusted. Once
// validation passes the commit runs to completion even if the caller goes
// away: a half-applied sign is a state this system must never expose.
func (s *Service) Sign(ctx context.Context, sess auth.Session, id, signerID uuid.UUID, signerName string) (Signature, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return Signature{}, err
	}
	if n.Status != StatusDraft {
		return Signature{}, &InvalidTransitionError{NoteID: id, From: n.Status, Op: "sign"}
	}

	result := Validate(n)
	if !result.CanProceed {
		return Signature{}, &ValidationBlockedError{Result: result}
	}

	sig := ComputeSignature(n)
	signedAt := time.Now().UTC()

	// Commit-or-fail from here on.
	commitCtx := context.WithoutCancel(ctx)

	if err := s.notes.Sign(commitCtx, id, signerID, signerName, signedAt, sig); err != nil {
		return Signature{}, err
	}

	s.logger.Info().
		Stringer("note_id", id).
		Str("signature", sig.String()).
		Str("signed_by", signerName).
		Msg("note signed")

	if _, err := s.audit.Log(commitCtx, sess, audit.Entry{
		Action:       audit.ActionNoteSign,
		ActorID:      signerID.String(),
		ActorName:    signerName,
		ResourceType: audit.ResourceNote,
		ResourceID:   id.String(),
		PatientID:    n.PatientID,
		Metadata: audit.Metadata{
			Sign: &audit.SignMetadata{
				Signature:        sig.String(),
				WarningsAccepted: len(result.Warnings),
			},
		},
	}); err != nil {
		s.logger.Error().Err(err).Stringer("note_id", id).Msg("audit write failed after sign commit")
		return sig, &AuditWriteError{Action: "sign", Err: err}
	}

	return sig, nil
}

// Amend appends a correction to a signed note. The original note's sections
// are untouched; only the ledger grows and is_amended flips.
func (s *Service) Amend(ctx context.Context, sess auth.Session, id, amenderID uuid.UUID, amenderName, reason, changeDescription string) (*amendment.Amendment, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != StatusSigned || n.DigitalSignature == nil {
		return nil, &InvalidTransitionError{NoteID: id, From: n.Status, Op: "amend"}
	}

	commitCtx := context.WithoutCancel(ctx)

	a, err := s.amendments.Append(commitCtx, id, amenderID, amenderName, reason, changeDescription, n.DigitalSignature.String())
	if err != nil {
		return nil, err
	}

	if err := s.notes.MarkAmended(commitCtx, id); err != nil {
		return nil, err
	}

	if _, err := s.audit.Log(commitCtx, sess, audit.Entry{
		Action:       audit.ActionNoteAmend,
		ActorID:      amenderID.String(),
		ActorName:    amenderName,
		ResourceType: audit.ResourceNote,
		ResourceID:   id.String(),
		PatientID:    n.PatientID,
		Metadata: audit.Metadata{
			Amend: &audit.AmendMetadata{
				AmendmentID:       a.ID,
				Reason:            reason,
				OriginalSignature: a.OriginalSignature,
			},
		},
	}); err != nil {
		s.logger.Error().Err(err).Stringer("note_id", id).Msg("audit write failed after amendment")
		return a, &AuditWriteError{Action: "amend", Err: err}
	}

	return a, nil
}

// Amendments returns the note's correction history in insertion order.
func (s *Service) Amendments(ctx context.Context, id uuid.UUID) ([]*amendment.Amendment, error) {
	if _, err := s.notes.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.amendments.ListByNote(ctx, id)
}

// Verify recomputes the note's hash and compares it to the stored
// signature. Returns nil when the content still matches, ErrNotSigned for a
// draft, and *IntegrityError on mismatch.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) error {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := VerifyNote(n); err != nil {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			s.logger.Warn().
				Stringer("note_id", id).
				Str("stored", ie.Stored).
				Str("computed", ie.Computed).
				Msg("note integrity mismatch")
		}
		return err
	}
	return nil
}
