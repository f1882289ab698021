package patients

import (
	"context"

	"github.com/google/uuid"
)

// SearchFilter narrows patient listing. Empty fields match everything.
type SearchFilter struct {
	Name  string
	Phone string
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Patient, int, error)
}

type FollowUpRepository interface {
	Create(ctx context.Context, f *FollowUp) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*FollowUp, int, error)
}
