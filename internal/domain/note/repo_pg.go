package note

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed note repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const noteCols = `id, patient_id, author_id, author_name, diagnosis, history,
	examination, investigations, problem_list, plan, safety, vital_signs,
	code_status, vte_prophylaxis, status, is_amended, digital_signature,
	signed_by, signed_by_name, signed_at, started_at, created_at, updated_at`

func (r *repoPG) scanNote(row pgx.Row) (*ClinicalNote, error) {
	var n ClinicalNote
	var rawSig *string
	var signedByName *string
	err := row.Scan(&n.ID, &n.PatientID, &n.AuthorID, &n.AuthorName, &n.Diagnosis, &n.History,
		&n.Examination, &n.Investigations, &n.ProblemList, &n.Plan, &n.Safety, &n.VitalSigns,
		&n.CodeStatus, &n.VTEProphylaxis, &n.Status, &n.IsAmended, &rawSig,
		&n.SignedBy, &signedByName, &n.SignedAt, &n.StartedAt, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rawSig != nil {
		sig, err := ParseSignature(*rawSig)
		if err != nil {
			return nil, err
		}
		n.DigitalSignature = &sig
	}
	if signedByName != nil {
		n.SignedByName = *signedByName
	}
	return &n, nil
}

func (r *repoPG) Create(ctx context.Context, n *ClinicalNote) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinical_note (id, patient_id, author_id, author_name, diagnosis, history,
			examination, investigations, problem_list, plan, safety, vital_signs,
			code_status, vte_prophylaxis, status, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		n.ID, n.PatientID, n.AuthorID, n.AuthorName, n.Diagnosis, n.History,
		n.Examination, n.Investigations, n.ProblemList, n.Plan, n.Safety, n.VitalSigns,
		n.CodeStatus, n.VTEProphylaxis, n.Status, n.StartedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalNote, error) {
	return r.scanNote(r.pool.QueryRow(ctx, `SELECT `+noteCols+` FROM clinical_note WHERE id = $1`, id))
}

func (r *repoPG) UpdateDraftSections(ctx context.Context, id uuid.UUID, p SectionPatch) error {
	// COALESCE keeps the stored value for fields the patch does not carry.
	// The status guard makes a stale autosave flush a no-op against a note
	// that was signed in the meantime.
	tag, err := r.pool.Exec(ctx, `
		UPDATE clinical_note SET
			patient_id      = COALESCE($2,  patient_id),
			diagnosis       = COALESCE($3,  diagnosis),
			history         = COALESCE($4,  history),
			examination     = COALESCE($5,  examination),
			investigations  = COALESCE($6,  investigations),
			problem_list    = COALESCE($7,  problem_list),
			plan            = COALESCE($8,  plan),
			safety          = COALESCE($9,  safety),
			vital_signs     = COALESCE($10, vital_signs),
			code_status     = COALESCE($11, code_status),
			vte_prophylaxis = COALESCE($12, vte_prophylaxis),
			updated_at      = NOW()
		WHERE id = $1 AND status = 'draft'`,
		id, p.PatientID, p.Diagnosis, p.History, p.Examination, p.Investigations,
		p.ProblemList, p.Plan, p.Safety, p.VitalSigns, p.CodeStatus, p.VTEProphylaxis)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id, ErrNoteSigned)
	}
	return nil
}

func (r *repoPG) Sign(ctx context.Context, id uuid.UUID, by uuid.UUID, byName string, at time.Time, sig Signature) error {
	// CAS on status: two near-simultaneous sign attempts cannot both match
	// the draft guard, so only one signature can ever be committed.
	tag, err := r.pool.Exec(ctx, `
		UPDATE clinical_note SET
			status = 'signed',
			digital_signature = $2,
			signed_by = $3,
			signed_by_name = $4,
			signed_at = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = 'draft'`,
		id, sig.String(), by, byName, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id, &InvalidTransitionError{NoteID: id, From: StatusSigned, Op: "sign"})
	}
	return nil
}

func (r *repoPG) MarkAmended(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clinical_note SET is_amended = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'signed'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id, &InvalidTransitionError{NoteID: id, From: StatusDraft, Op: "amend"})
	}
	return nil
}

// classifyMiss distinguishes "wrong state" from "no such note" after a
// guarded update matched zero rows.
func (r *repoPG) classifyMiss(ctx context.Context, id uuid.UUID, wrongState error) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clinical_note WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return wrongState
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*ClinicalNote, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clinical_note WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+noteCols+` FROM clinical_note WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ClinicalNote
	for rows.Next() {
		n, err := r.scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}
