package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/orthocare/orthocare/internal/patients"
)

const patientColumns = `id, patient_name, age, visit_date, diagnosis, surgical_procedure, hospital,
	expectations, follow_up_parameters, k_wire_removal, splint_change_removal,
	type_and_suture_removal, follow_up_first, follow_up_second, follow_up_third, created_at`

const patientOrder = `ORDER BY visit_date IS NULL, visit_date DESC, created_at ASC`

const searchClause = `WHERE instr(lower(patient_name), ?1) > 0 OR instr(lower(diagnosis), ?1) > 0
	OR instr(lower(surgical_procedure), ?1) > 0 OR instr(lower(hospital), ?1) > 0
	OR instr(CAST(age AS TEXT), ?1) > 0 OR instr(lower(expectations), ?1) > 0
	OR instr(lower(follow_up_parameters), ?1) > 0 OR instr(lower(k_wire_removal), ?1) > 0
	OR instr(lower(splint_change_removal), ?1) > 0 OR instr(lower(type_and_suture_removal), ?1) > 0`

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(row scanner) (*patients.Patient, error) {
	var p patients.Patient
	var visit sql.NullString
	var created int64
	err := row.Scan(
		&p.ID, &p.PatientName, &p.Age, &visit, &p.Diagnosis, &p.Procedure, &p.Hospital,
		&p.Expectations, &p.FollowUpParameters, &p.KWireRemoval, &p.SplintChangeRemoval,
		&p.TypeAndSutureRemoval, &p.PlannedFollowUps.First, &p.PlannedFollowUps.Second,
		&p.PlannedFollowUps.Third, &created,
	)
	if err != nil {
		return nil, err
	}
	p.Date = visit.String
	p.CreatedAt = fromUnix(created)
	return &p, nil
}

func nullDate(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (d *DB) listPatients(ctx context.Context, where string, args ...any) ([]patients.Patient, error) {
	rows, err := d.db.QueryContext(ctx,
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

func (d *DB) GetAll(ctx context.Context) ([]patients.Patient, error) {
	return d.listPatients(ctx, "")
}

// Search lowercases with Go's Unicode rules; SQLite's lower() only folds
// ASCII, so non-ASCII matching is exact-case on the stored side.
func (d *DB) Search(ctx context.Context, query string) ([]patients.Patient, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return d.GetAll(ctx)
	}
	return d.listPatients(ctx, searchClause, q)
}

func (d *DB) GetByID(ctx context.Context, id string) (*patients.Patient, error) {
	p, err := scanPatient(d.db.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, patients.ErrNotFound
	}
	return p, err
}

func (d *DB) Create(ctx context.Context, in patients.CreateInput) (string, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := toUnix(d.now())
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO patients (id, patient_name, age, visit_date, diagnosis, surgical_procedure,
			hospital, expectations, follow_up_parameters, k_wire_removal, splint_change_removal,
			type_and_suture_removal, follow_up_first, follow_up_second, follow_up_third,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.PatientName, in.Age, nullDate(in.Date), in.Diagnosis, in.Procedure,
		in.Hospital, in.Expectations, in.FollowUpParameters, in.KWireRemoval, in.SplintChangeRemoval,
		in.TypeAndSutureRemoval, in.PlannedFollowUps.First, in.PlannedFollowUps.Second, in.PlannedFollowUps.Third,
		now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert patient: %w", err)
	}
	return id, nil
}

func (d *DB) Update(ctx context.Context, id string, u patients.UpdateInput) (*patients.Patient, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPatient(tx.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, patients.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Apply(p)

	_, err = tx.ExecContext(ctx, `
		UPDATE patients SET patient_name = ?, age = ?, visit_date = ?, diagnosis = ?,
			surgical_procedure = ?, hospital = ?, expectations = ?, follow_up_parameters = ?,
			k_wire_removal = ?, splint_change_removal = ?, type_and_suture_removal = ?,
			follow_up_first = ?, follow_up_second = ?, follow_up_third = ?, updated_at = ?
		WHERE id = ?`,
		p.PatientName, p.Age, nullDate(p.Date), p.Diagnosis,
		p.Procedure, p.Hospital, p.Expectations, p.FollowUpParameters,
		p.KWireRemoval, p.SplintChangeRemoval, p.TypeAndSutureRemoval,
		p.PlannedFollowUps.First, p.PlannedFollowUps.Second, p.PlannedFollowUps.Third,
		toUnix(d.now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return patients.ErrNotFound
	}
	return nil
}
