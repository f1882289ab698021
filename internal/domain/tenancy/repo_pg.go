package tenancy

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

// =========== Tenant Repository ===========

// The tenant table lives in the shared public schema; it is visible from
// every tenant's search_path.

type tenantRepoPG struct{ pool *pgxpool.Pool }

func NewTenantRepoPG(pool *pgxpool.Pool) TenantRepository { return &tenantRepoPG{pool: pool} }

func (r *tenantRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const tenantCols = `id, name, subdomain, status, subscription_type,
	document_verification_status, created_at, updated_at`

func (r *tenantRepoPG) scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.Status, &t.SubscriptionType,
		&t.DocumentVerificationStatus, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("tenant")
	}
	return &t, err
}

func (r *tenantRepoPG) Create(ctx context.Context, t *Tenant) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO public.tenant (id, name, subdomain, status, subscription_type, document_verification_status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.Name, t.Subdomain, t.Status, t.SubscriptionType, t.DocumentVerificationStatus)
	return err
}

func (r *tenantRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return r.scanTenant(r.conn(ctx).QueryRow(ctx, `SELECT `+tenantCols+` FROM public.tenant WHERE id = $1`, id))
}

func (r *tenantRepoPG) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	return r.scanTenant(r.conn(ctx).QueryRow(ctx, `SELECT `+tenantCols+` FROM public.tenant WHERE subdomain = $1`, subdomain))
}

func (r *tenantRepoPG) Update(ctx context.Context, t *Tenant) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE public.tenant SET name=$2, status=$3, subscription_type=$4,
			document_verification_status=$5, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Status, t.SubscriptionType, t.DocumentVerificationStatus)
	return err
}

func (r *tenantRepoPG) List(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM public.tenant WHERE status <> 'deleted'`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+tenantCols+` FROM public.tenant WHERE status <> 'deleted' ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Tenant
	for rows.Next() {
		t, err := r.scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

// =========== Settings Repository ===========

// Settings live inside the tenant schema, so the search_path set by the
// tenant middleware scopes them without an explicit tenant filter.

type settingsRepoPG struct{ pool *pgxpool.Pool }

func NewSettingsRepoPG(pool *pgxpool.Pool) SettingsRepository { return &settingsRepoPG{pool: pool} }

func (r *settingsRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const settingsCols = `id, tva_rate, default_consultation_duration, timezone,
	business_hours_start, business_hours_end, currency, updated_at`

func (r *settingsRepoPG) Get(ctx context.Context) (*HospitalSettings, error) {
	var s HospitalSettings
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+settingsCols+` FROM hospital_settings LIMIT 1`).Scan(
		&s.ID, &s.TVARate, &s.DefaultConsultationDuration, &s.Timezone,
		&s.BusinessHoursStart, &s.BusinessHoursEnd, &s.Currency, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		defaults := DefaultSettings()
		if err := r.Save(ctx, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepoPG) Save(ctx context.Context, s *HospitalSettings) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospital_settings (id, tva_rate, default_consultation_duration, timezone,
			business_hours_start, business_hours_end, currency)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET tva_rate=$2, default_consultation_duration=$3,
			timezone=$4, business_hours_start=$5, business_hours_end=$6, currency=$7, updated_at=NOW()`,
		s.ID, s.TVARate, s.DefaultConsultationDuration, s.Timezone,
		s.BusinessHoursStart, s.BusinessHoursEnd, s.Currency)
	return err
}
