package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed audit repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

// Insert writes one entry. recorded_at is assigned server-side so the trail
// carries one consistent clock.
func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	var metadata []byte
	if !e.Metadata.IsZero() {
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO audit_entry (id, action, actor_id, actor_name, resource_type,
			resource_id, patient_id, changes, session_id, user_agent, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING recorded_at`,
		e.ID, e.Action, e.ActorID, e.ActorName, e.ResourceType,
		e.ResourceID, e.PatientID, changes, e.SessionID, e.UserAgent, metadata).
		Scan(&e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
