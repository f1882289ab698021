package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TypeRepository interface {
	Create(ctx context.Context, t *AppointmentType) error
	GetByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error)
	List(ctx context.Context) ([]*AppointmentType, error)
}

type StatusRepository interface {
	GetByCode(ctx context.Context, code string) (*AppointmentStatus, error)
	List(ctx context.Context) ([]*AppointmentStatus, error)
}

// AgendaFilter narrows appointment listings.
type AgendaFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type AppointmentRepository interface {
	// CreateExclusive inserts the appointment only if the doctor's slot is
	// still free, serializing concurrent bookings for the same doctor.
	CreateExclusive(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, f AgendaFilter, limit, offset int) ([]*Appointment, int, error)
	// ListActiveBetween returns the doctor's non-cancelled appointments
	// intersecting [from, to).
	ListActiveBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	// HasOverlap reports whether a non-cancelled appointment of the doctor
	// overlaps [start, end), ignoring excludeID when non-nil.
	HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
	// PendingReminders returns appointments starting within the window that
	// have no reminder sent yet and are not cancelled.
	PendingReminders(ctx context.Context, from, to time.Time) ([]*Appointment, error)
	AppendStatusChange(ctx context.Context, ch *StatusChange) error
	StatusHistory(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChange, error)
}
