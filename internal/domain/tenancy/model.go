package tenancy

import (
	"time"

	"github.com/google/uuid"
)

// Tenant statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

// Subscription types.
const (
	SubscriptionTrial      = "trial"
	SubscriptionBasic      = "basic"
	SubscriptionPremium    = "premium"
	SubscriptionEnterprise = "enterprise"
)

// Document verification statuses.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Tenant maps to the shared tenant table. The subdomain doubles as the
// tenant identifier carried in JWT claims and used for the schema name.
type Tenant struct {
	ID                         uuid.UUID `db:"id" json:"id"`
	Name                       string    `db:"name" json:"name"`
	Subdomain                  string    `db:"subdomain" json:"subdomain"`
	Status                     string    `db:"status" json:"status"`
	SubscriptionType           string    `db:"subscription_type" json:"subscription_type"`
	DocumentVerificationStatus string    `db:"document_verification_status" json:"document_verification_status"`
	CreatedAt                  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the tenant may serve traffic.
func (t *Tenant) IsActive() bool { return t.Status == StatusActive }

// HospitalSettings holds per-tenant operational settings. One row per
// tenant schema; reads auto-create the defaults below.
type HospitalSettings struct {
	ID                          uuid.UUID `db:"id" json:"id"`
	TVARate                     float64   `db:"tva_rate" json:"tva_rate"`
	DefaultConsultationDuration int       `db:"default_consultation_duration" json:"default_consultation_duration"`
	Timezone                    string    `db:"timezone" json:"timezone"`
	BusinessHoursStart          string    `db:"business_hours_start" json:"business_hours_start"`
	BusinessHoursEnd            string    `db:"business_hours_end" json:"business_hours_end"`
	Currency                    string    `db:"currency" json:"currency"`
	UpdatedAt                   time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultSettings returns the settings a fresh tenant starts with.
func DefaultSettings() *HospitalSettings {
	return &HospitalSettings{
		TVARate:                     20.0,
		DefaultConsultationDuration: 30,
		Timezone:                    "Europe/Paris",
		BusinessHoursStart:          "08:00",
		BusinessHoursEnd:            "18:00",
		Currency:                    "EUR",
	}
}
