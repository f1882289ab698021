package notifications

import (
	"context"
	"errors"

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

const notificationCols = `id, user_id, kind, title, body, is_read, read_at, created_at`

type notificationRepoPG struct {
	pool *pgxpool.Pool
}

func NewNotificationRepoPG(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepoPG{pool: pool}
}

func (r *notificationRepoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO notification (`+notificationCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		n.ID, n.UserID, n.Kind, n.Title, n.Body, n.IsRead, n.ReadAt)
	return err
}

func (r *notificationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+notificationCols+` FROM notification WHERE id = $1`, id)
	return scanNotification(row)
}

func (r *notificationRepoPG) Update(ctx context.Context, n *Notification) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE notification SET is_read = $2, read_at = $3 WHERE id = $1`,
		n.ID, n.IsRead, n.ReadAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("notification")
	}
	return nil
}

func (r *notificationRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	where := ` WHERE user_id = $1`
	if unreadOnly {
		where += ` AND NOT is_read`
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM notification`+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+notificationCols+` FROM notification`+where+
			` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body,
			&n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	return out, total, rows.Err()
}

func (r *notificationRepoPG) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM notification WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body,
		&n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("notification")
		}
		return nil, err
	}
	return &n, nil
}

type preferenceRepoPG struct {
	pool *pgxpool.Pool
}

func NewPreferenceRepoPG(pool *pgxpool.Pool) PreferenceRepository {
	return &preferenceRepoPG{pool: pool}
}

func (r *preferenceRepoPG) Get(ctx context.Context, userID uuid.UUID) (*Preference, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT user_id, email_enabled, sms_enabled, reminders_enabled, reminder_lead_hours, updated_at
		 FROM notification_preference WHERE user_id = $1`, userID)

	var p Preference
	if err := row.Scan(&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.RemindersEnabled,
		&p.ReminderLeadHours, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("notification preferences")
		}
		return nil, err
	}
	return &p, nil
}

func (r *preferenceRepoPG) Upsert(ctx context.Context, p *Preference) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO notification_preference (user_id, email_enabled, sms_enabled, reminders_enabled, reminder_lead_hours, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		   email_enabled = EXCLUDED.email_enabled,
		   sms_enabled = EXCLUDED.sms_enabled,
		   reminders_enabled = EXCLUDED.reminders_enabled,
		   reminder_lead_hours = EXCLUDED.reminder_lead_hours,
		   updated_at = now()`,
		p.UserID, p.EmailEnabled, p.SMSEnabled, p.RemindersEnabled, p.ReminderLeadHours)
	return err
}
