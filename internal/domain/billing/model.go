package billing

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription tier a hospital can be on.
type Plan struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	PriceMonthly float64   `db:"price_monthly" json:"price_monthly"`
	Description  *string   `db:"description" json:"description,omitempty"`
}

// Subscription is the hospital's active plan period.
type Subscription struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PlanID    uuid.UUID `db:"plan_id" json:"plan_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (s *Subscription) IsExpired(now time.Time) bool {
	return !now.Before(s.EndsAt)
}

// DaysRemaining is the number of full days until expiry, never negative.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.IsExpired(now) {
		return 0
	}
	return int(s.EndsAt.Sub(now).Hours() / 24)
}

// ExpiresSoon reports whether fewer than seven days remain.
func (s *Subscription) ExpiresSoon(now time.Time) bool {
	return !s.IsExpired(now) && s.DaysRemaining(now) < 7
}

// FreeTrial is the one-shot trial period of a hospital.
type FreeTrial struct {
	ID       uuid.UUID `db:"id" json:"id"`
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
	EndsAt   time.Time `db:"ends_at" json:"ends_at"`
}

// Invoice statuses.
const (
	InvoiceDraft     = "draft"
	InvoiceIssued    = "issued"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// Invoice bills a patient. Amounts are in the hospital currency; the
// TTC amount derives from the pre-tax amount and the TVA rate.
type Invoice struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Number    *string    `db:"number" json:"number,omitempty"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	AmountHT  float64    `db:"amount_ht" json:"amount_ht"`
	TVARate   float64    `db:"tva_rate" json:"tva_rate"`
	AmountTTC float64    `db:"amount_ttc" json:"amount_ttc"`
	Status    string     `db:"status" json:"status"`
	Label     *string    `db:"label" json:"label,omitempty"`
	IssuedAt  *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ComputeTTC applies the TVA rate and rounds to the cent.
func ComputeTTC(amountHT, tvaRate float64) float64 {
	return math.Round(amountHT*(1+tvaRate/100)*100) / 100
}

// Payment methods.
const (
	PayCash     = "cash"
	PayCard     = "card"
	PayTransfer = "transfer"
	PayMobile   = "mobile"
)

type Payment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	InvoiceID uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount    float64   `db:"amount" json:"amount"`
	Method    string    `db:"method" json:"method"`
	PaidAt    time.Time `db:"paid_at" json:"paid_at"`
}

// Coupon kinds.
const (
	CouponPercentage = "percentage"
	CouponFixed      = "fixed"
)

type Coupon struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	Kind       string    `db:"kind" json:"kind"`
	Value      float64   `db:"value" json:"value"`
	ValidFrom  time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time `db:"valid_until" json:"valid_until"`
	MaxUses    int       `db:"max_uses" json:"max_uses"`
	Uses       int       `db:"uses" json:"uses"`
}

// IsValid checks the validity window and remaining uses.
func (c *Coupon) IsValid(now time.Time) bool {
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.MaxUses > 0 && c.Uses >= c.MaxUses {
		return false
	}
	return true
}

// Apply discounts the amount, flooring at zero.
func (c *Coupon) Apply(amount float64) float64 {
	var discounted float64
	switch c.Kind {
	case CouponPercentage:
		discounted = amount * (1 - c.Value/100)
	case CouponFixed:
		discounted = amount - c.Value
	default:
		return amount
	}
	if discounted < 0 {
		return 0
	}
	return math.Round(discounted*100) / 100
}

// ConsultationTariff prices a consultation, with flat surcharges for
// emergency, night and weekend visits.
type ConsultationTariff struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	SpecialtyID        *uuid.UUID `db:"specialty_id" json:"specialty_id,omitempty"`
	BaseAmount         float64    `db:"base_amount" json:"base_amount"`
	EmergencySurcharge float64    `db:"emergency_surcharge" json:"emergency_surcharge"`
	NightSurcharge     float64    `db:"night_surcharge" json:"night_surcharge"`
	WeekendSurcharge   float64    `db:"weekend_surcharge" json:"weekend_surcharge"`
}

// Rate sums the base amount and the applicable surcharges.
func (t *ConsultationTariff) Rate(emergency, night, weekend bool) float64 {
	rate := t.BaseAmount
	if emergency {
		rate += t.EmergencySurcharge
	}
	if night {
		rate += t.NightSurcharge
	}
	if weekend {
		rate += t.WeekendSurcharge
	}
	return rate
}
