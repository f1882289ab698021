package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PlanRepository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
}

type SubscriptionRepository interface {
	Create(ctx context.Context, s *Subscription) error
	// Current returns the subscription with the latest end date.
	Current(ctx context.Context) (*Subscription, error)
}

type FreeTrialRepository interface {
	Create(ctx context.Context, t *FreeTrial) error
	// Get returns the hospital's trial, or a not-found error when it was
	// never started.
	Get(ctx context.Context) (*FreeTrial, error)
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	PatientID *uuid.UUID
	Status    string
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error)
	// CountIssuedInYear feeds sequential invoice numbering.
	CountIssuedInYear(ctx context.Context, year int) (int, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	// TotalPaid sums the payments recorded against an invoice.
	TotalPaid(ctx context.Context, invoiceID uuid.UUID) (float64, error)
}

type CouponRepository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	IncrementUses(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, at time.Time) ([]*Coupon, error)
}

type TariffRepository interface {
	Create(ctx context.Context, t *ConsultationTariff) error
	GetByID(ctx context.Context, id uuid.UUID) (*ConsultationTariff, error)
	List(ctx context.Context) ([]*ConsultationTariff, error)
}
