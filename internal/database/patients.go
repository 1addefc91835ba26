package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orthocare/orthocare/internal/patients"
)

const patientColumns = `id, patient_name, age, visit_date, diagnosis, surgical_procedure, hospital,
	expectations, follow_up_parameters, k_wire_removal, splint_change_removal,
	type_and_suture_removal, follow_up_first, follow_up_second, follow_up_third, created_at`

const patientOrder = `ORDER BY visit_date DESC NULLS LAST, created_at ASC`

// searchClause matches $1 (an escaped LIKE pattern) against every
// searchable column.
const searchClause = `WHERE patient_name ILIKE $1 OR diagnosis ILIKE $1 OR surgical_procedure ILIKE $1
	OR hospital ILIKE $1 OR age::text ILIKE $1 OR expectations ILIKE $1
	OR follow_up_parameters ILIKE $1 OR k_wire_removal ILIKE $1
	OR splint_change_removal ILIKE $1 OR type_and_suture_removal ILIKE $1`

func scanPatient(row pgx.Row) (*patients.Patient, error) {
	var p patients.Patient
	var visit *time.Time
	err := row.Scan(
		&p.ID, &p.PatientName, &p.Age, &visit, &p.Diagnosis, &p.Procedure, &p.Hospital,
		&p.Expectations, &p.FollowUpParameters, &p.KWireRemoval, &p.SplintChangeRemoval,
		&p.TypeAndSutureRemoval, &p.PlannedFollowUps.First, &p.PlannedFollowUps.Second,
		&p.PlannedFollowUps.Third, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Date = fromPQDate(visit)
	return &p, nil
}

func (db *DB) listPatients(ctx context.Context, where string, args ...any) ([]patients.Patient, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+patientColumns+` FROM patients `+where+` `+patientOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []patients.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (db *DB) GetAll(ctx context.Context) ([]patients.Patient, error) {
	return db.listPatients(ctx, "")
}

func (db *DB) Search(ctx context.Context, query string) ([]patients.Patient, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return db.GetAll(ctx)
	}
	return db.listPatients(ctx, searchClause, likePattern(q))
}

func (db *DB) GetByID(ctx context.Context, id string) (*patients.Patient, error) {
	p, err := scanPatient(db.Pool.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, patients.ErrNotFound
	}
	return p, err
}

func (db *DB) Create(ctx context.Context, in patients.CreateInput) (string, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	visit, err := pqDate(in.Date)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO patients (id, patient_name, age, visit_date, diagnosis, surgical_procedure,
			hospital, expectations, follow_up_parameters, k_wire_removal, splint_change_removal,
			type_and_suture_removal, follow_up_first, follow_up_second, follow_up_third)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, in.PatientName, in.Age, visit, in.Diagnosis, in.Procedure,
		in.Hospital, in.Expectations, in.FollowUpParameters, in.KWireRemoval, in.SplintChangeRemoval,
		in.TypeAndSutureRemoval, in.PlannedFollowUps.First, in.PlannedFollowUps.Second, in.PlannedFollowUps.Third,
	)
	if err != nil {
		return "", fmt.Errorf("insert patient: %w", err)
	}
	return id, nil
}

// Update locks the row, merges u in Go and writes the full record back so
// partial-update rules live in one place.
func (db *DB) Update(ctx context.Context, id string, u patients.UpdateInput) (*patients.Patient, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanPatient(tx.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, patients.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Apply(p)
	visit, err := pqDate(p.Date)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE patients SET patient_name = $2, age = $3, visit_date = $4, diagnosis = $5,
			surgical_procedure = $6, hospital = $7, expectations = $8, follow_up_parameters = $9,
			k_wire_removal = $10, splint_change_removal = $11, type_and_suture_removal = $12,
			follow_up_first = $13, follow_up_second = $14, follow_up_third = $15, updated_at = now()
		WHERE id = $1`,
		id, p.PatientName, p.Age, visit, p.Diagnosis,
		p.Procedure, p.Hospital, p.Expectations, p.FollowUpParameters,
		p.KWireRemoval, p.SplintChangeRemoval, p.TypeAndSutureRemoval,
		p.PlannedFollowUps.First, p.PlannedFollowUps.Second, p.PlannedFollowUps.Third,
	)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (db *DB) Delete(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return patients.ErrNotFound
	}
	return nil
}
