package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/pkg/apperror"
)

// PatientDirectory is the slice of the patients package this service needs.
type PatientDirectory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// TVAProvider supplies the hospital's default TVA rate.
type TVAProvider interface {
	DefaultTVARate(ctx context.Context) (float64, error)
}

var validPayMethods = map[string]bool{
	PayCash:     true,
	PayCard:     true,
	PayTransfer: true,
	PayMobile:   true,
}

// freeTrialDays is the length of the one-shot trial period.
const freeTrialDays = 30

type Service struct {
	plans    PlanRepository
	subs     SubscriptionRepository
	trials   FreeTrialRepository
	invoices InvoiceRepository
	payments PaymentRepository
	coupons  CouponRepository
	tariffs  TariffRepository
	patients PatientDirectory
	tva      TVAProvider
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(
	plans PlanRepository,
	subs SubscriptionRepository,
	trials FreeTrialRepository,
	invoices InvoiceRepository,
	payments PaymentRepository,
	coupons CouponRepository,
	tariffs TariffRepository,
	patients PatientDirectory,
	tva TVAProvider,
	logger zerolog.Logger,
) *Service {
	return &Service{
		plans:    plans,
		subs:     subs,
		trials:   trials,
		invoices: invoices,
		payments: payments,
		coupons:  coupons,
		tariffs:  tariffs,
		patients: patients,
		tva:      tva,
		logger:   logger,
		now:      time.Now,
	}
}

// =========== Plans and subscriptions ===========

func (s *Service) CreatePlan(ctx context.Context, p *Plan) (*Plan, error) {
	v := &apperror.ValidationError{}
	if p.Name == "" {
		v.Add("name", "name is required")
	}
	if p.Code == "" {
		v.Add("code", "code is required")
	}
	if p.PriceMonthly < 0 {
		v.Add("price_monthly", "price cannot be negative")
	}
	if v.HasErrors() {
		return nil, v
	}
	if existing, err := s.plans.GetByCode(ctx, p.Code); err == nil && existing != nil {
		return nil, apperror.NewConflict("plan code %q already exists", p.Code)
	} else if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if err := s.plans.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]*Plan, error) {
	return s.plans.List(ctx)
}

// Subscribe starts a plan period of the given number of months, beginning
// when the current subscription ends or now if none is active.
func (s *Service) Subscribe(ctx context.Context, planID uuid.UUID, months int) (*Subscription, error) {
	if months <= 0 {
		return nil, apperror.NewValidation("months", "months must be positive")
	}
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, err
	}

	start := s.now()
	if current, err := s.subs.Current(ctx); err == nil && !current.IsExpired(start) {
		start = current.EndsAt
	} else if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	sub := &Subscription{
		PlanID:   planID,
		StartsAt: start,
		EndsAt:   start.AddDate(0, months, 0),
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.Info().Str("plan_id", planID.String()).Time("ends_at", sub.EndsAt).Msg("subscription started")
	return sub, nil
}

// SubscriptionStatus is the current subscription with derived fields.
type SubscriptionStatus struct {
	Subscription  *Subscription `json:"subscription"`
	DaysRemaining int           `json:"days_remaining"`
	IsExpired     bool          `json:"is_expired"`
	ExpiresSoon   bool          `json:"expires_soon"`
}

func (s *Service) CurrentSubscription(ctx context.Context) (*SubscriptionStatus, error) {
	sub, err := s.subs.Current(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &SubscriptionStatus{
		Subscription:  sub,
		DaysRemaining: sub.DaysRemaining(now),
		IsExpired:     sub.IsExpired(now),
		ExpiresSoon:   sub.ExpiresSoon(now),
	}, nil
}

// StartFreeTrial begins the one-shot trial. A hospital gets exactly one.
func (s *Service) StartFreeTrial(ctx context.Context) (*FreeTrial, error) {
	if _, err := s.trials.Get(ctx); err == nil {
		return nil, apperror.NewConflict("the free trial has already been used")
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}
	now := s.now()
	t := &FreeTrial{StartsAt: now, EndsAt: now.AddDate(0, 0, freeTrialDays)}
	if err := s.trials.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// =========== Invoices ===========

type InvoiceInput struct {
	PatientID  uuid.UUID `json:"patient_id"`
	AmountHT   float64   `json:"amount_ht"`
	TVARate    *float64  `json:"tva_rate,omitempty"`
	Label      *string   `json:"label,omitempty"`
	CouponCode *string   `json:"coupon_code,omitempty"`
}

// CreateInvoice creates a draft invoice, applying the hospital TVA rate
// when none is given and any coupon before tax.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	v := &apperror.ValidationError{}
	if in.PatientID == uuid.Nil {
		v.Add("patient_id", "patient id is required")
	}
	if in.AmountHT <= 0 {
		v.Add("amount_ht", "amount must be positive")
	}
	if in.TVARate != nil && (*in.TVARate < 0 || *in.TVARate > 100) {
		v.Add("tva_rate", "tva rate must be between 0 and 100")
	}
	if v.HasErrors() {
		return nil, v
	}

	if ok, err := s.patients.PatientExists(ctx, in.PatientID); err != nil {
		return nil, err
	} else if !ok {
		return nil, apperror.NewValidation("patient_id", "unknown patient")
	}

	rate := 0.0
	if in.TVARate != nil {
		rate = *in.TVARate
	} else {
		var err error
		rate, err = s.tva.DefaultTVARate(ctx)
		if err != nil {
			return nil, err
		}
	}

	amount := in.AmountHT
	if in.CouponCode != nil && *in.CouponCode != "" {
		coupon, err := s.coupons.GetByCode(ctx, *in.CouponCode)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewValidation("coupon_code", "unknown coupon")
			}
			return nil, err
		}
		if !coupon.IsValid(s.now()) {
			return nil, apperror.NewValidation("coupon_code", "coupon is expired or exhausted")
		}
		amount = coupon.Apply(amount)
		if err := s.coupons.IncrementUses(ctx, coupon.ID); err != nil {
			return nil, err
		}
	}

	inv := &Invoice{
		PatientID: in.PatientID,
		AmountHT:  amount,
		TVARate:   rate,
		AmountTTC: ComputeTTC(amount, rate),
		Status:    InvoiceDraft,
		Label:     in.Label,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// IssueInvoice finalizes a draft, assigning its sequential number.
func (s *Service) IssueInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoiceDraft {
		return nil, apperror.NewConflict("only draft invoices can be issued")
	}
	now := s.now()
	seq, err := s.invoices.CountIssuedInYear(ctx, now.Year())
	if err != nil {
		return nil, err
	}
	number := fmt.Sprintf("FAC-%d-%04d", now.Year(), seq+1)
	inv.Number = &number
	inv.Status = InvoiceIssued
	inv.IssuedAt = &now
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info().Str("invoice", number).Float64("amount_ttc", inv.AmountTTC).Msg("invoice issued")
	return inv, nil
}

// CancelInvoice voids an unpaid invoice.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoicePaid {
		return nil, apperror.NewConflict("a paid invoice cannot be cancelled")
	}
	if inv.Status == InvoiceCancelled {
		return nil, apperror.NewConflict("invoice is already cancelled")
	}
	inv.Status = InvoiceCancelled
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, f, limit, offset)
}

// =========== Payments ===========

// RecordPayment registers a payment on an issued invoice and marks it
// paid once the total covers the TTC amount. Overpayment is rejected.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, amount float64, method string) (*Payment, *Invoice, error) {
	v := &apperror.ValidationError{}
	if amount <= 0 {
		v.Add("amount", "amount must be positive")
	}
	if !validPayMethods[method] {
		v.Add("method", "method must be one of cash, card, transfer, mobile")
	}
	if v.HasErrors() {
		return nil, nil, v
	}

	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if inv.Status != InvoiceIssued {
		return nil, nil, apperror.NewConflict("payments can only be recorded on issued invoices")
	}

	paid, err := s.payments.TotalPaid(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	remaining := inv.AmountTTC - paid
	if amount > remaining+0.005 {
		return nil, nil, apperror.Validationf("amount", "amount exceeds the %.2f remaining", remaining)
	}

	p := &Payment{InvoiceID: invoiceID, Amount: amount, Method: method, PaidAt: s.now()}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, nil, err
	}

	if paid+amount >= inv.AmountTTC-0.005 {
		inv.Status = InvoicePaid
		if err := s.invoices.Update(ctx, inv); err != nil {
			return nil, nil, err
		}
	}
	return p, inv, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.payments.ListByInvoice(ctx, invoiceID)
}

// =========== Coupons ===========

func (s *Service) CreateCoupon(ctx context.Context, c *Coupon) (*Coupon, error) {
	v := &apperror.ValidationError{}
	if c.Code == "" {
		v.Add("code", "code is required")
	}
	if c.Kind != CouponPercentage && c.Kind != CouponFixed {
		v.Add("kind", "kind must be percentage or fixed")
	}
	if c.Value <= 0 {
		v.Add("value", "value must be positive")
	}
	if c.Kind == CouponPercentage && c.Value > 100 {
		v.Add("value", "percentage cannot exceed 100")
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		v.Add("valid_until", "validity window is empty")
	}
	if v.HasErrors() {
		return nil, v
	}
	if existing, err := s.coupons.GetByCode(ctx, c.Code); err == nil && existing != nil {
		return nil, apperror.NewConflict("coupon %q already exists", c.Code)
	} else if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if err := s.coupons.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CouponQuote is the outcome of validating a coupon against an amount.
type CouponQuote struct {
	Valid       bool    `json:"valide"`
	Discount    float64 `json:"remise"`
	FinalAmount float64 `json:"montant_final"`
}

// ValidateCoupon quotes a coupon without consuming a use.
func (s *Service) ValidateCoupon(ctx context.Context, code string, amount float64) (*CouponQuote, error) {
	if amount < 0 {
		return nil, apperror.NewValidation("montant", "amount cannot be negative")
	}
	c, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return &CouponQuote{Valid: false, FinalAmount: amount}, nil
		}
		return nil, err
	}
	if !c.IsValid(s.now()) {
		return &CouponQuote{Valid: false, FinalAmount: amount}, nil
	}
	final := c.Apply(amount)
	return &CouponQuote{Valid: true, Discount: amount - final, FinalAmount: final}, nil
}

// =========== Tariffs ===========

func (s *Service) CreateTariff(ctx context.Context, t *ConsultationTariff) (*ConsultationTariff, error) {
	v := &apperror.ValidationError{}
	if t.Name == "" {
		v.Add("name", "name is required")
	}
	if t.BaseAmount <= 0 {
		v.Add("base_amount", "base amount must be positive")
	}
	if t.EmergencySurcharge < 0 || t.NightSurcharge < 0 || t.WeekendSurcharge < 0 {
		v.Add("surcharges", "surcharges cannot be negative")
	}
	if v.HasErrors() {
		return nil, v
	}
	if err := s.tariffs.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListTariffs(ctx context.Context) ([]*ConsultationTariff, error) {
	return s.tariffs.List(ctx)
}

// QuoteTariff computes the rate for a visit profile.
func (s *Service) QuoteTariff(ctx context.Context, id uuid.UUID, emergency, night, weekend bool) (float64, error) {
	t, err := s.tariffs.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return t.Rate(emergency, night, weekend), nil
}
