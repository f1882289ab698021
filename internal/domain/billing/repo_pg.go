package billing

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
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Plan Repository ===========

type planRepoPG struct{ pool *pgxpool.Pool }

func NewPlanRepoPG(pool *pgxpool.Pool) PlanRepository { return &planRepoPG{pool: pool} }

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.PriceMonthly, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("plan")
	}
	return &p, err
}

func (r *planRepoPG) Create(ctx context.Context, p *Plan) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO plan (id, name, code, price_monthly, description) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Code, p.PriceMonthly, p.Description)
	return err
}

func (r *planRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return scanPlan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, code, price_monthly, description FROM plan WHERE id = $1`, id))
}

func (r *planRepoPG) GetByCode(ctx context.Context, code string) (*Plan, error) {
	return scanPlan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, code, price_monthly, description FROM plan WHERE code = $1`, code))
}

func (r *planRepoPG) List(ctx context.Context) ([]*Plan, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, code, price_monthly, description FROM plan ORDER BY price_monthly`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.PriceMonthly, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// =========== Subscription Repository ===========

type subscriptionRepoPG struct{ pool *pgxpool.Pool }

func NewSubscriptionRepoPG(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepoPG{pool: pool}
}

func (r *subscriptionRepoPG) Create(ctx context.Context, s *Subscription) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO subscription (id, plan_id, starts_at, ends_at) VALUES ($1,$2,$3,$4)`,
		s.ID, s.PlanID, s.StartsAt, s.EndsAt)
	return err
}

func (r *subscriptionRepoPG) Current(ctx context.Context) (*Subscription, error) {
	var s Subscription
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, plan_id, starts_at, ends_at, created_at
		FROM subscription ORDER BY ends_at DESC LIMIT 1`).
		Scan(&s.ID, &s.PlanID, &s.StartsAt, &s.EndsAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("subscription")
	}
	return &s, err
}

// =========== FreeTrial Repository ===========

type freeTrialRepoPG struct{ pool *pgxpool.Pool }

func NewFreeTrialRepoPG(pool *pgxpool.Pool) FreeTrialRepository { return &freeTrialRepoPG{pool: pool} }

func (r *freeTrialRepoPG) Create(ctx context.Context, t *FreeTrial) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO free_trial (id, starts_at, ends_at) VALUES ($1,$2,$3)`,
		t.ID, t.StartsAt, t.EndsAt)
	return err
}

func (r *freeTrialRepoPG) Get(ctx context.Context) (*FreeTrial, error) {
	var t FreeTrial
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, starts_at, ends_at FROM free_trial LIMIT 1`).
		Scan(&t.ID, &t.StartsAt, &t.EndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("free trial")
	}
	return &t, err
}

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invoiceCols = `id, number, patient_id, amount_ht, tva_rate, amount_ttc, status, label, issued_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.PatientID, &inv.AmountHT, &inv.TVARate,
		&inv.AmountTTC, &inv.Status, &inv.Label, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("invoice")
	}
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO invoice (id, patient_id, amount_ht, tva_rate, amount_ttc, status, label)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		inv.ID, inv.PatientID, inv.AmountHT, inv.TVARate, inv.AmountTTC, inv.Status, inv.Label)
	return err
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id))
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE invoice SET number=$2, amount_ht=$3, tva_rate=$4, amount_ttc=$5,
			status=$6, label=$7, issued_at=$8, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.Number, inv.AmountHT, inv.TVARate, inv.AmountTTC,
		inv.Status, inv.Label, inv.IssuedAt)
	return err
}

func (r *invoiceRepoPG) List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	query := `SELECT ` + invoiceCols + ` FROM invoice WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM invoice WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.PatientID != nil {
		clause := fmt.Sprintf(` AND patient_id = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		clause := fmt.Sprintf(` AND status = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.PatientID, &inv.AmountHT, &inv.TVARate,
			&inv.AmountTTC, &inv.Status, &inv.Label, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &inv)
	}
	return out, total, rows.Err()
}

func (r *invoiceRepoPG) CountIssuedInYear(ctx context.Context, year int) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoice WHERE number IS NOT NULL AND EXTRACT(YEAR FROM issued_at) = $1`, year).
		Scan(&n)
	return n, err
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO payment (id, invoice_id, amount, method, paid_at) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.PaidAt)
	return err
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, invoice_id, amount, method, paid_at
		FROM payment WHERE invoice_id = $1 ORDER BY paid_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *paymentRepoPG) TotalPaid(ctx context.Context, invoiceID uuid.UUID) (float64, error) {
	var total float64
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payment WHERE invoice_id = $1`, invoiceID).
		Scan(&total)
	return total, err
}

// =========== Coupon Repository ===========

type couponRepoPG struct{ pool *pgxpool.Pool }

func NewCouponRepoPG(pool *pgxpool.Pool) CouponRepository { return &couponRepoPG{pool: pool} }

func (r *couponRepoPG) Create(ctx context.Context, c *Coupon) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO coupon (id, code, kind, value, valid_from, valid_until, max_uses, uses)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0)`,
		c.ID, c.Code, c.Kind, c.Value, c.ValidFrom, c.ValidUntil, c.MaxUses)
	return err
}

func (r *couponRepoPG) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, code, kind, value, valid_from, valid_until, max_uses, uses
		FROM coupon WHERE upper(code) = upper($1)`, code).
		Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.ValidFrom, &c.ValidUntil, &c.MaxUses, &c.Uses)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("coupon")
	}
	return &c, err
}

func (r *couponRepoPG) IncrementUses(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `UPDATE coupon SET uses = uses + 1 WHERE id = $1`, id)
	return err
}

func (r *couponRepoPG) List(ctx context.Context, at time.Time) ([]*Coupon, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, code, kind, value, valid_from, valid_until, max_uses, uses
		FROM coupon WHERE valid_until >= $1 ORDER BY valid_until`, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Coupon
	for rows.Next() {
		var c Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.ValidFrom, &c.ValidUntil,
			&c.MaxUses, &c.Uses); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// =========== Tariff Repository ===========

type tariffRepoPG struct{ pool *pgxpool.Pool }

func NewTariffRepoPG(pool *pgxpool.Pool) TariffRepository { return &tariffRepoPG{pool: pool} }

const tariffCols = `id, name, specialty_id, base_amount, emergency_surcharge, night_surcharge, weekend_surcharge`

func (r *tariffRepoPG) Create(ctx context.Context, t *ConsultationTariff) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO consultation_tariff (id, name, specialty_id, base_amount, emergency_surcharge, night_surcharge, weekend_surcharge)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.Name, t.SpecialtyID, t.BaseAmount, t.EmergencySurcharge, t.NightSurcharge, t.WeekendSurcharge)
	return err
}

func (r *tariffRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ConsultationTariff, error) {
	var t ConsultationTariff
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tariffCols+` FROM consultation_tariff WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.SpecialtyID, &t.BaseAmount, &t.EmergencySurcharge,
			&t.NightSurcharge, &t.WeekendSurcharge)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("tariff")
	}
	return &t, err
}

func (r *tariffRepoPG) List(ctx context.Context) ([]*ConsultationTariff, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+tariffCols+` FROM consultation_tariff ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ConsultationTariff
	for rows.Next() {
		var t ConsultationTariff
		if err := rows.Scan(&t.ID, &t.Name, &t.SpecialtyID, &t.BaseAmount,
			&t.EmergencySurcharge, &t.NightSurcharge, &t.WeekendSurcharge); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
