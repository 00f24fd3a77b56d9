package amendment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service validates and appends amendment records. The signed-note
// precondition is enforced by the note state machine, which owns the note
// and calls Append with the note's stored signature.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Append records one correction. The original signature is the note's
// stored signature, copied as-is and never recomputed.
func (s *Service) Append(ctx context.Context, noteID, amenderID uuid.UUID, amenderName, reason, changeDescription, originalSignature string) (*Amendment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("amendment reason is required")
	}
	if strings.TrimSpace(changeDescription) == "" {
		return nil, fmt.Errorf("amendment change description is required")
	}
	if originalSignature == "" {
		return nil, fmt.Errorf("amendment requires the note's signature")
	}

	a := &Amendment{
		ID:                uuid.New(),
		NoteID:            noteID,
		AmenderID:         amenderID,
		AmenderName:       amenderName,
		AmendedAt:         time.Now().UTC(),
		Reason:            reason,
		ChangeDescription: changeDescription,
		OriginalSignature: originalSignature,
	}
	if err := s.repo.Append(ctx, a); err != nil {
		return nil, fmt.Errorf("append amendment: %w", err)
	}
	return a, nil
}

// ListByNote returns the note's corrections in insertion order.
func (s *Service) ListByNote(ctx context.Context, noteID uuid.UUID) ([]*Amendment, error) {
	return s.repo.ListByNote(ctx, noteID)
}
