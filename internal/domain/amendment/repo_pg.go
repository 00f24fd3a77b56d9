package amendment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed amendment ledger.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) Append(ctx context.Context, a *Amendment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO note_amendment (id, note_id, amender_id, amender_name,
			amended_at, reason, change_description, original_signature)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.NoteID, a.AmenderID, a.AmenderName,
		a.AmendedAt, a.Reason, a.ChangeDescription, a.OriginalSignature)
	return err
}

// ListByNote returns amendments in insertion order (the seq column is a
// bigserial assigned at append time).
func (r *repoPG) ListByNote(ctx context.Context, noteID uuid.UUID) ([]*Amendment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, note_id, amender_id, amender_name, amended_at, reason,
			change_description, original_signature
		FROM note_amendment WHERE note_id = $1 ORDER BY seq`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Amendment
	for rows.Next() {
		var a Amendment
		if err := rows.Scan(&a.ID, &a.NoteID, &a.AmenderID, &a.AmenderName,
			&a.AmendedAt, &a.Reason, &a.ChangeDescription, &a.OriginalSignature); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
