package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alcortex/alcortex/internal/domain/diagnosis"
	"github.com/alcortex/alcortex/internal/domain/intake"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed record repository. Patient and
// analysis travel as JSONB columns alongside the denormalized name and RM
// number used for listing.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Save(ctx context.Context, rec *SavedRecord) error {
	patientJSON, err := json.Marshal(rec.Patient)
	if err != nil {
		return fmt.Errorf("marshal patient: %w", err)
	}
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO records (record_id, user_email, patient_name, rm_no, patient_data, analysis_result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id) DO UPDATE SET
			user_email = EXCLUDED.user_email,
			patient_name = EXCLUDED.patient_name,
			rm_no = EXCLUDED.rm_no,
			patient_data = EXCLUDED.patient_data,
			analysis_result = EXCLUDED.analysis_result,
			created_at = EXCLUDED.created_at`,
		rec.ID, rec.Owner, rec.Patient.Name, rec.Patient.RMNo, patientJSON, analysisJSON, rec.Date)
	return err
}

const recordCols = `record_id, user_email, patient_data, analysis_result, created_at`

func scanRecord(row pgx.Row) (*SavedRecord, error) {
	var rec SavedRecord
	var patientJSON, analysisJSON []byte
	if err := row.Scan(&rec.ID, &rec.Owner, &patientJSON, &analysisJSON, &rec.Date); err != nil {
		return nil, err
	}
	rec.Patient = &intake.PatientSnapshot{}
	if err := json.Unmarshal(patientJSON, rec.Patient); err != nil {
		return nil, fmt.Errorf("unmarshal patient for %s: %w", rec.ID, err)
	}
	rec.Analysis = &diagnosis.DiagnosisResult{}
	if err := json.Unmarshal(analysisJSON, rec.Analysis); err != nil {
		return nil, fmt.Errorf("unmarshal analysis for %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func (r *repoPG) List(ctx context.Context) ([]*SavedRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordCols+` FROM records ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*SavedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id string) (*SavedRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordCols+` FROM records WHERE record_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM records WHERE record_id = $1`, id)
	return err
}
