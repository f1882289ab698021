package tenancy

import (
	"context"

	"github.com/google/uuid"
)

type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, int, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*HospitalSettings, error)
	Save(ctx context.Context, s *HospitalSettings) error
}
