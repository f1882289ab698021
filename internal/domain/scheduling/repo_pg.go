package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

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
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Type Repository ===========

type typeRepoPG struct{ pool *pgxpool.Pool }

func NewTypeRepoPG(pool *pgxpool.Pool) TypeRepository { return &typeRepoPG{pool: pool} }

func (r *typeRepoPG) Create(ctx context.Context, t *AppointmentType) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO appointment_type (id, name, default_duration_min, color) VALUES ($1,$2,$3,$4)`,
		t.ID, t.Name, t.DefaultDurationMin, t.Color)
	return err
}

func (r *typeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	var t AppointmentType
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, default_duration_min, color FROM appointment_type WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.DefaultDurationMin, &t.Color)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("appointment type")
	}
	return &t, err
}

func (r *typeRepoPG) List(ctx context.Context) ([]*AppointmentType, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, default_duration_min, color FROM appointment_type ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AppointmentType
	for rows.Next() {
		var t AppointmentType
		if err := rows.Scan(&t.ID, &t.Name, &t.DefaultDurationMin, &t.Color); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// =========== Status Repository ===========

type statusRepoPG struct{ pool *pgxpool.Pool }

func NewStatusRepoPG(pool *pgxpool.Pool) StatusRepository { return &statusRepoPG{pool: pool} }

func (r *statusRepoPG) GetByCode(ctx context.Context, code string) (*AppointmentStatus, error) {
	var s AppointmentStatus
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, code, label, is_cancellation, is_terminal FROM appointment_status WHERE code = $1`, code).
		Scan(&s.ID, &s.Code, &s.Label, &s.IsCancellation, &s.IsTerminal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("appointment status")
	}
	return &s, err
}

func (r *statusRepoPG) List(ctx context.Context) ([]*AppointmentStatus, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, code, label, is_cancellation, is_terminal FROM appointment_status ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AppointmentStatus
	for rows.Next() {
		var s AppointmentStatus
		if err := rows.Scan(&s.ID, &s.Code, &s.Label, &s.IsCancellation, &s.IsTerminal); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.type_id, a.status_id, s.code,
	a.start_at, a.end_at, a.duration_min, a.reason, a.notes, a.cancellation_reason,
	a.reminder_sent, a.created_by, a.created_at, a.updated_at`

const apptFrom = ` FROM appointment a JOIN appointment_status s ON s.id = a.status_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.TypeID, &a.StatusID, &a.StatusCode,
		&a.StartAt, &a.EndAt, &a.DurationMin, &a.Reason, &a.Notes, &a.CancellationReason,
		&a.ReminderSent, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("appointment")
	}
	return &a, err
}

// overlapCond matches non-cancelled appointments of the doctor intersecting
// the half-open interval [$2, $3).
const overlapCond = `a.doctor_id = $1 AND a.start_at < $3 AND $2 < a.end_at AND NOT s.is_cancellation`

func (r *appointmentRepoPG) CreateExclusive(ctx context.Context, a *Appointment) error {
	var tx pgx.Tx
	var err error
	if c := db.ConnFromContext(ctx); c != nil {
		tx, err = c.Begin(ctx)
	} else {
		tx, err = r.pool.Begin(ctx)
	}
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// serialize bookings per doctor for the rest of the transaction
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.DoctorID.String()); err != nil {
		return err
	}

	var taken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1`+apptFrom+` WHERE `+overlapCond+`)`,
		a.DoctorID, a.StartAt, a.EndAt).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return apperror.NewConflict("the doctor already has an appointment on this slot")
	}

	a.ID = uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, type_id, status_id, start_at, end_at,
			duration_min, reason, notes, reminder_sent, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false,$11)`,
		a.ID, a.PatientID, a.DoctorID, a.TypeID, a.StatusID, a.StartAt, a.EndAt,
		a.DurationMin, a.Reason, a.Notes, a.CreatedBy)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment SET type_id=$2, status_id=$3, start_at=$4, end_at=$5,
			duration_min=$6, reason=$7, notes=$8, cancellation_reason=$9,
			reminder_sent=$10, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.TypeID, a.StatusID, a.StartAt, a.EndAt,
		a.DurationMin, a.Reason, a.Notes, a.CancellationReason, a.ReminderSent)
	return err
}

func (r *appointmentRepoPG) List(ctx context.Context, f AgendaFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(` AND a.end_at > $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(` AND a.start_at < $%d`, idx)
		args = append(args, *f.To)
		idx++
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*)`+apptFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + apptFrom + where +
		fmt.Sprintf(` ORDER BY a.start_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func collectAppointments(rows pgx.Rows, total int) ([]*Appointment, int, error) {
	var out []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.TypeID, &a.StatusID, &a.StatusCode,
			&a.StartAt, &a.EndAt, &a.DurationMin, &a.Reason, &a.Notes, &a.CancellationReason,
			&a.ReminderSent, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &a)
	}
	return out, total, rows.Err()
}

func (r *appointmentRepoPG) ListActiveBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE `+overlapCond+` ORDER BY a.start_at`,
		doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, _, err := collectAppointments(rows, 0)
	return out, err
}

func (r *appointmentRepoPG) HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1` + apptFrom + ` WHERE ` + overlapCond
	args := []interface{}{doctorID, start, end}
	if excludeID != nil {
		query += ` AND a.id <> $4`
		args = append(args, *excludeID)
	}
	query += `)`

	var taken bool
	err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&taken)
	return taken, err
}

func (r *appointmentRepoPG) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointment SET reminder_sent = true, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("appointment")
	}
	return nil
}

func (r *appointmentRepoPG) PendingReminders(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+apptCols+apptFrom+`
		WHERE a.start_at >= $1 AND a.start_at < $2
			AND NOT a.reminder_sent AND NOT s.is_cancellation
		ORDER BY a.start_at`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, _, err := collectAppointments(rows, 0)
	return out, err
}

func (r *appointmentRepoPG) AppendStatusChange(ctx context.Context, ch *StatusChange) error {
	ch.ID = uuid.New()
	if ch.ChangedAt.IsZero() {
		ch.ChangedAt = time.Now().UTC()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO status_change (id, appointment_id, from_status, to_status, reason, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ch.ID, ch.AppointmentID, ch.FromStatus, ch.ToStatus, ch.Reason, ch.ChangedBy, ch.ChangedAt)
	return err
}

func (r *appointmentRepoPG) StatusHistory(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChange, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, appointment_id, from_status, to_status, reason, changed_by, changed_at
		FROM status_change WHERE appointment_id = $1 ORDER BY changed_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StatusChange
	for rows.Next() {
		var ch StatusChange
		if err := rows.Scan(&ch.ID, &ch.AppointmentID, &ch.FromStatus, &ch.ToStatus,
			&ch.Reason, &ch.ChangedBy, &ch.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &ch)
	}
	return out, rows.Err()
}
