package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trimed/hospital/internal/platform/db"
	"github.com/trimed/hospital/pkg/apperror"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `id, user_id, first_name, last_name, birth_date, gender, blood_group,
	phone, email, address, city, emergency_contact_name, emergency_contact_phone,
	medical_history, allergies, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender,
		&p.BloodGroup, &p.Phone, &p.Email, &p.Address, &p.City,
		&p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.MedicalHistory, &p.Allergies, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("patient")
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient (id, user_id, first_name, last_name, birth_date, gender, blood_group,
			phone, email, address, city, emergency_contact_name, emergency_contact_phone,
			medical_history, allergies)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.UserID, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.BloodGroup,
		p.Phone, p.Email, p.Address, p.City, p.EmergencyContactName, p.EmergencyContactPhone,
		p.MedicalHistory, p.Allergies)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return scanPatient(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE user_id = $1`, userID))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient SET user_id=$2, first_name=$3, last_name=$4, birth_date=$5, gender=$6,
			blood_group=$7, phone=$8, email=$9, address=$10, city=$11,
			emergency_contact_name=$12, emergency_contact_phone=$13,
			medical_history=$14, allergies=$15, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.UserID, p.FirstName, p.LastName, p.BirthDate, p.Gender,
		p.BloodGroup, p.Phone, p.Email, p.Address, p.City,
		p.EmergencyContactName, p.EmergencyContactPhone, p.MedicalHistory, p.Allergies)
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("patient")
	}
	return nil
}

func (r *patientRepoPG) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patient WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patient WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.Name != "" {
		clause := fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, idx, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+f.Name+"%")
		idx++
	}
	if f.Phone != "" {
		clause := fmt.Sprintf(` AND phone LIKE $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+f.Phone+"%")
		idx++
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender,
			&p.BloodGroup, &p.Phone, &p.Email, &p.Address, &p.City,
			&p.EmergencyContactName, &p.EmergencyContactPhone,
			&p.MedicalHistory, &p.Allergies, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

// =========== FollowUp Repository ===========

type followUpRepoPG struct{ pool *pgxpool.Pool }

func NewFollowUpRepoPG(pool *pgxpool.Pool) FollowUpRepository { return &followUpRepoPG{pool: pool} }

const followUpCols = `id, patient_id, recorded_by, recorded_at, weight_kg, height_cm,
	temperature_c, systolic_bp, diastolic_bp, heart_rate, notes`

func (r *followUpRepoPG) Create(ctx context.Context, f *FollowUp) error {
	f.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO follow_up (id, patient_id, recorded_by, recorded_at, weight_kg, height_cm,
			temperature_c, systolic_bp, diastolic_bp, heart_rate, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		f.ID, f.PatientID, f.RecordedBy, f.RecordedAt, f.WeightKg, f.HeightCm,
		f.TemperatureC, f.SystolicBP, f.DiastolicBP, f.HeartRate, f.Notes)
	return err
}

func (r *followUpRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*FollowUp, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM follow_up WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+followUpCols+` FROM follow_up
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*FollowUp
	for rows.Next() {
		var f FollowUp
		if err := rows.Scan(&f.ID, &f.PatientID, &f.RecordedBy, &f.RecordedAt,
			&f.WeightKg, &f.HeightCm, &f.TemperatureC,
			&f.SystolicBP, &f.DiastolicBP, &f.HeartRate, &f.Notes); err != nil {
			return nil, 0, err
		}
		out = append(out, &f)
	}
	return out, total, rows.Err()
}
