package inventory

import (
	"context"

	"github.com/google/uuid"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *MedicationCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationCategory, error)
	GetByName(ctx context.Context, name string) (*MedicationCategory, error)
	List(ctx context.Context) ([]*MedicationCategory, error)
}

// MedicationFilter narrows a medication listing.
type MedicationFilter struct {
	CategoryID *uuid.UUID
	Name       string
	LowStock   bool
}

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	List(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error)
}

type MovementRepository interface {
	Create(ctx context.Context, mv *StockMovement) error
	ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*StockMovement, error)
}
