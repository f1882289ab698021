package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/pkg/apperror"
)

var validMovementKinds = map[string]bool{
	MovementIn:     true,
	MovementOut:    true,
	MovementAdjust: true,
}

// Service manages the pharmacy catalog and stock levels.
type Service struct {
	categories CategoryRepository
	meds       MedicationRepository
	movements  MovementRepository
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(categories CategoryRepository, meds MedicationRepository, movements MovementRepository, logger zerolog.Logger) *Service {
	return &Service{
		categories: categories,
		meds:       meds,
		movements:  movements,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) CreateCategory(ctx context.Context, name string) (*MedicationCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidation("nom", "category name is required")
	}
	if _, err := s.categories.GetByName(ctx, name); err == nil {
		return nil, apperror.NewConflict("category %q already exists", name)
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	c := &MedicationCategory{Name: name}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("category_id", c.ID.String()).Str("name", c.Name).Msg("medication category created")
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]*MedicationCategory, error) {
	return s.categories.List(ctx)
}

// MedicationInput carries the editable fields of a medication.
type MedicationInput struct {
	CategoryID    *uuid.UUID `json:"categorie_id"`
	Name          string     `json:"nom"`
	Description   *string    `json:"description"`
	Price         float64    `json:"prix"`
	StockQuantity int        `json:"quantite_stock"`
	MinStockLevel int        `json:"seuil_alerte"`
}

func (in *MedicationInput) validate() *apperror.ValidationError {
	v := &apperror.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("nom", "name is required")
	}
	if in.Price < 0 {
		v.Add("prix", "price cannot be negative")
	}
	if in.StockQuantity < 0 {
		v.Add("quantite_stock", "stock quantity cannot be negative")
	}
	if in.MinStockLevel < 0 {
		v.Add("seuil_alerte", "alert threshold cannot be negative")
	}
	return v
}

func (s *Service) CreateMedication(ctx context.Context, in MedicationInput) (*Medication, error) {
	v := in.validate()
	if in.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *in.CategoryID); err != nil {
			if apperror.IsNotFound(err) {
				v.Add("categorie_id", "unknown category")
			} else {
				return nil, err
			}
		}
	}
	if v.HasErrors() {
		return nil, v
	}

	m := &Medication{
		CategoryID:    in.CategoryID,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		MinStockLevel: in.MinStockLevel,
	}
	if err := s.meds.Create(ctx, m); err != nil {
		return nil, err
	}

	// the opening balance is itself a movement so the history adds up
	if m.StockQuantity > 0 {
		mv := &StockMovement{
			MedicationID: m.ID,
			Delta:        m.StockQuantity,
			Kind:         MovementIn,
			CreatedBy:    "system",
			CreatedAt:    s.now(),
		}
		if err := s.movements.Create(ctx, mv); err != nil {
			s.logger.Warn().Err(err).Str("medication_id", m.ID.String()).Msg("failed to record opening stock movement")
		}
	}

	s.logger.Info().Str("medication_id", m.ID.String()).Str("name", m.Name).Msg("medication created")
	return m, nil
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.meds.GetByID(ctx, id)
}

func (s *Service) UpdateMedication(ctx context.Context, id uuid.UUID, in MedicationInput) (*Medication, error) {
	current, err := s.meds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v := in.validate()
	if in.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *in.CategoryID); err != nil {
			if apperror.IsNotFound(err) {
				v.Add("categorie_id", "unknown category")
			} else {
				return nil, err
			}
		}
	}
	if v.HasErrors() {
		return nil, v
	}

	current.CategoryID = in.CategoryID
	current.Name = strings.TrimSpace(in.Name)
	current.Description = in.Description
	current.Price = in.Price
	current.MinStockLevel = in.MinStockLevel
	// StockQuantity only moves through AdjustStock

	if err := s.meds.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) ListMedications(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	return s.meds.List(ctx, f, limit, offset)
}

// LowStock lists every medication at or below its alert threshold.
func (s *Service) LowStock(ctx context.Context) ([]*Medication, error) {
	meds, _, err := s.meds.List(ctx, MedicationFilter{LowStock: true}, 500, 0)
	return meds, err
}

// AdjustInput is one stock change request.
type AdjustInput struct {
	Delta  int     `json:"delta"`
	Kind   string  `json:"type"`
	Reason *string `json:"raison"`
}

// AdjustStock applies a signed stock change and records the movement.
// The resulting quantity can never go negative.
func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, actorUserID string, in AdjustInput) (*Medication, error) {
	v := &apperror.ValidationError{}
	if in.Delta == 0 {
		v.Add("delta", "delta cannot be zero")
	}
	if !validMovementKinds[in.Kind] {
		v.Add("type", "movement type must be one of in, out, adjust")
	}
	if in.Kind == MovementIn && in.Delta < 0 {
		v.Add("delta", "an inbound movement must have a positive delta")
	}
	if in.Kind == MovementOut && in.Delta > 0 {
		v.Add("delta", "an outbound movement must have a negative delta")
	}
	if v.HasErrors() {
		return nil, v
	}

	m, err := s.meds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := m.StockQuantity + in.Delta
	if next < 0 {
		return nil, apperror.Validationf("delta", "only %d units in stock", m.StockQuantity)
	}

	m.StockQuantity = next
	if err := s.meds.Update(ctx, m); err != nil {
		return nil, err
	}

	mv := &StockMovement{
		MedicationID: m.ID,
		Delta:        in.Delta,
		Kind:         in.Kind,
		Reason:       in.Reason,
		CreatedBy:    actorUserID,
		CreatedAt:    s.now(),
	}
	if err := s.movements.Create(ctx, mv); err != nil {
		s.logger.Warn().Err(err).Str("medication_id", m.ID.String()).Msg("failed to record stock movement")
	}

	if m.NeedsRestock() {
		s.logger.Warn().
			Str("medication_id", m.ID.String()).
			Str("name", m.Name).
			Int("stock", m.StockQuantity).
			Int("threshold", m.MinStockLevel).
			Msg("medication stock at or below alert threshold")
	}
	return m, nil
}

func (s *Service) StockHistory(ctx context.Context, id uuid.UUID) ([]*StockMovement, error) {
	if _, err := s.meds.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.movements.ListByMedication(ctx, id)
}
