package tenancy

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/trimed/hospital/internal/config"
	"github.com/trimed/hospital/pkg/apperror"
)

// SchemaProvisioner creates the database schema for a new tenant and runs
// migrations against it.
type SchemaProvisioner func(ctx context.Context, tenantID string) error

var subdomainPattern = regexp.MustCompile(`^[a-z0-9_]{3,40}$`)

var validSubscriptions = map[string]bool{
	SubscriptionTrial: true, SubscriptionBasic: true,
	SubscriptionPremium: true, SubscriptionEnterprise: true,
}

type Service struct {
	tenants   TenantRepository
	settings  SettingsRepository
	provision SchemaProvisioner
}

func NewService(tenants TenantRepository, settings SettingsRepository, provision SchemaProvisioner) *Service {
	return &Service{tenants: tenants, settings: settings, provision: provision}
}

// CreateTenant registers the tenant and provisions its schema. New tenants
// start pending on a trial subscription.
func (s *Service) CreateTenant(ctx context.Context, t *Tenant) error {
	v := &apperror.ValidationError{}
	if t.Name == "" {
		v.Add("name", "name is required")
	}
	if !subdomainPattern.MatchString(t.Subdomain) {
		v.Add("subdomain", "subdomain must be 3-40 lowercase letters, digits or underscores")
	}
	if v.HasErrors() {
		return v
	}
	if existing, err := s.tenants.GetBySubdomain(ctx, t.Subdomain); err == nil && existing != nil {
		return apperror.NewConflict("subdomain %q is already taken", t.Subdomain)
	}

	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.SubscriptionType == "" {
		t.SubscriptionType = SubscriptionTrial
	}
	if t.DocumentVerificationStatus == "" {
		t.DocumentVerificationStatus = VerificationPending
	}

	if err := s.tenants.Create(ctx, t); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	if err := s.provision(ctx, t.Subdomain); err != nil {
		return fmt.Errorf("provision schema for %s: %w", t.Subdomain, err)
	}
	return nil
}

func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

func (s *Service) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	return s.tenants.GetBySubdomain(ctx, subdomain)
}

func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	return s.tenants.List(ctx, limit, offset)
}

// Activate moves a tenant to active. Deleted tenants stay deleted.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.setStatus(ctx, id, StatusActive)
}

// Suspend blocks a tenant without removing its data.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.setStatus(ctx, id, StatusSuspended)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status string) (*Tenant, error) {
	t, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusDeleted {
		return nil, apperror.NewConflict("tenant is deleted")
	}
	t.Status = status
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetSubscription changes the subscription tier of a tenant.
func (s *Service) SetSubscription(ctx context.Context, id uuid.UUID, subscription string) (*Tenant, error) {
	if !validSubscriptions[subscription] {
		return nil, apperror.Validationf("subscription_type", "unknown subscription type: %s", subscription)
	}
	t, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.SubscriptionType = subscription
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetSettings returns the tenant's settings, creating defaults on first read.
func (s *Service) GetSettings(ctx context.Context) (*HospitalSettings, error) {
	return s.settings.Get(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, in *HospitalSettings) (*HospitalSettings, error) {
	v := &apperror.ValidationError{}
	if in.TVARate < 0 || in.TVARate > 100 {
		v.Add("tva_rate", "tva_rate must be between 0 and 100")
	}
	if in.DefaultConsultationDuration <= 0 {
		v.Add("default_consultation_duration", "duration must be positive")
	}
	start, err := config.ParseClock(in.BusinessHoursStart)
	if err != nil {
		v.Add("business_hours_start", "expected HH:MM")
	}
	end, err := config.ParseClock(in.BusinessHoursEnd)
	if err != nil {
		v.Add("business_hours_end", "expected HH:MM")
	} else if !start.Before(end) {
		v.Add("business_hours_end", "closing time must be after opening time")
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		v.Add("timezone", "unknown timezone")
	}
	if v.HasErrors() {
		return nil, v
	}

	current, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	in.ID = current.ID
	if in.Currency == "" {
		in.Currency = current.Currency
	}
	if err := s.settings.Save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}
