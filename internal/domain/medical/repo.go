package medical

import (
	"context"

	"github.com/google/uuid"
)

type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	GetByName(ctx context.Context, name string) (*Specialty, error)
	List(ctx context.Context) ([]*Specialty, error)
}

// DoctorFilter narrows doctor listings. Zero values match everything.
type DoctorFilter struct {
	SpecialtyID   *uuid.UUID
	AvailableOnly bool
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error)
}

// ConsultationFilter narrows consultation listings.
type ConsultationFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}

type ConsultationRepository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	List(ctx context.Context, f ConsultationFilter, limit, offset int) ([]*Consultation, int, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Prescription, error)
}
