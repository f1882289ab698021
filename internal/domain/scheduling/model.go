package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentType categorizes visits and carries a default duration.
type AppointmentType struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	DefaultDurationMin *int      `db:"default_duration_min" json:"default_duration_min,omitempty"`
	Color              *string   `db:"color" json:"color,omitempty"`
}

// AppointmentStatus is a row of the status reference table. Codes are
// seeded by migration. The flags are descriptive, not a transition
// graph: IsCancellation frees the slot, IsTerminal marks statuses a
// rebooking makes no sense for.
type AppointmentStatus struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Label          string    `db:"label" json:"label"`
	IsCancellation bool      `db:"is_cancellation" json:"is_cancellation"`
	IsTerminal     bool      `db:"is_terminal" json:"is_terminal"`
}

// Status codes seeded in the reference table.
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no-show"
)

// Appointment is one booked slot on a doctor's agenda.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	TypeID             *uuid.UUID `db:"type_id" json:"type_id,omitempty"`
	StatusID           uuid.UUID  `db:"status_id" json:"status_id"`
	StatusCode         string     `db:"status_code" json:"status"`
	StartAt            time.Time  `db:"start_at" json:"start_at"`
	EndAt              time.Time  `db:"end_at" json:"end_at"`
	DurationMin        int        `db:"duration_min" json:"duration_min"`
	Reason             string     `db:"reason" json:"reason"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	ReminderSent       bool       `db:"reminder_sent" json:"reminder_sent"`
	CreatedBy          uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two half-open intervals intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Slot is a free interval on a doctor's agenda.
type Slot struct {
	Start time.Time `json:"debut"`
	End   time.Time `json:"fin"`
}

// StatusChange is one entry of the append-only status audit trail.
type StatusChange struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	FromStatus    *string   `db:"from_status" json:"from_status,omitempty"`
	ToStatus      string    `db:"to_status" json:"to_status"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
	ChangedBy     uuid.UUID `db:"changed_by" json:"changed_by"`
	ChangedAt     time.Time `db:"changed_at" json:"changed_at"`
}
