package medical

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

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository { return &specialtyRepoPG{pool: pool} }

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("specialty")
	}
	return &s, err
}

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO specialty (id, name, description) VALUES ($1,$2,$3)`,
		s.ID, s.Name, s.Description)
	return err
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	return scanSpecialty(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, description FROM specialty WHERE id = $1`, id))
}

func (r *specialtyRepoPG) GetByName(ctx context.Context, name string) (*Specialty, error) {
	return scanSpecialty(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, description FROM specialty WHERE lower(name) = lower($1)`, name))
}

func (r *specialtyRepoPG) List(ctx context.Context) ([]*Specialty, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, description FROM specialty ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

const doctorCols = `id, user_id, specialty_id, license_number, biography, is_available, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.SpecialtyID, &d.LicenseNumber,
		&d.Biography, &d.IsAvailable, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("doctor")
	}
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctor (id, user_id, specialty_id, license_number, biography, is_available)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.UserID, d.SpecialtyID, d.LicenseNumber, d.Biography, d.IsAvailable)
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return scanDoctor(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor WHERE user_id = $1`, userID))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctor SET specialty_id=$2, license_number=$3, biography=$4,
			is_available=$5, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.SpecialtyID, d.LicenseNumber, d.Biography, d.IsAvailable)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	query := `SELECT ` + doctorCols + ` FROM doctor WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM doctor WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.SpecialtyID != nil {
		clause := fmt.Sprintf(` AND specialty_id = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, *f.SpecialtyID)
		idx++
	}
	if f.AvailableOnly {
		query += ` AND is_available`
		countQuery += ` AND is_available`
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.UserID, &d.SpecialtyID, &d.LicenseNumber,
			&d.Biography, &d.IsAvailable, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &d)
	}
	return out, total, rows.Err()
}

// =========== Consultation Repository ===========

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewConsultationRepoPG(pool *pgxpool.Pool) ConsultationRepository {
	return &consultationRepoPG{pool: pool}
}

const consultationCols = `id, appointment_id, patient_id, doctor_id, date, reason, diagnosis, notes, created_at, updated_at`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.AppointmentID, &c.PatientID, &c.DoctorID, &c.Date,
		&c.Reason, &c.Diagnosis, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("consultation")
	}
	return &c, err
}

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO consultation (id, appointment_id, patient_id, doctor_id, date, reason, diagnosis, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.AppointmentID, c.PatientID, c.DoctorID, c.Date, c.Reason, c.Diagnosis, c.Notes)
	return err
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return scanConsultation(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultation WHERE id = $1`, id))
}

func (r *consultationRepoPG) Update(ctx context.Context, c *Consultation) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE consultation SET reason=$2, diagnosis=$3, notes=$4, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Reason, c.Diagnosis, c.Notes)
	return err
}

func (r *consultationRepoPG) List(ctx context.Context, f ConsultationFilter, limit, offset int) ([]*Consultation, int, error) {
	query := `SELECT ` + consultationCols + ` FROM consultation WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM consultation WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.PatientID != nil {
		clause := fmt.Sprintf(` AND patient_id = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		clause := fmt.Sprintf(` AND doctor_id = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, *f.DoctorID)
		idx++
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY date DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		var c Consultation
		if err := rows.Scan(&c.ID, &c.AppointmentID, &c.PatientID, &c.DoctorID, &c.Date,
			&c.Reason, &c.Diagnosis, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &c)
	}
	return out, total, rows.Err()
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	q := conn(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO prescription (id, consultation_id, prescribed_at, notes)
		VALUES ($1,$2,$3,$4)`,
		p.ID, p.ConsultationID, p.PrescribedAt, p.Notes)
	if err != nil {
		return err
	}
	for i := range p.Items {
		item := &p.Items[i]
		item.ID = uuid.New()
		item.PrescriptionID = p.ID
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_item (id, prescription_id, medication_name, dosage, frequency, duration_days, instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, item.PrescriptionID, item.MedicationName, item.Dosage,
			item.Frequency, item.DurationDays, item.Instructions)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *prescriptionRepoPG) loadItems(ctx context.Context, p *Prescription) error {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, prescription_id, medication_name, dosage, frequency, duration_days, instructions
		FROM prescription_item WHERE prescription_id = $1 ORDER BY medication_name`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicationName, &it.Dosage,
			&it.Frequency, &it.DurationDays, &it.Instructions); err != nil {
			return err
		}
		p.Items = append(p.Items, it)
	}
	return rows.Err()
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, consultation_id, prescribed_at, notes FROM prescription WHERE id = $1`, id).
		Scan(&p.ID, &p.ConsultationID, &p.PrescribedAt, &p.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("prescription")
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Prescription, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, consultation_id, prescribed_at, notes
		FROM prescription WHERE consultation_id = $1 ORDER BY prescribed_at DESC`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.ConsultationID, &p.PrescribedAt, &p.Notes); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if err := r.loadItems(ctx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}
