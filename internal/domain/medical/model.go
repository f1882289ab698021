package medical

import (
	"time"

	"github.com/google/uuid"
)

// Specialty is a medical discipline doctors attach to.
type Specialty struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
}

// Doctor is the clinical profile behind a user account with the doctor role.
type Doctor struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	SpecialtyID   *uuid.UUID `db:"specialty_id" json:"specialty_id,omitempty"`
	LicenseNumber string     `db:"license_number" json:"license_number"`
	Biography     *string    `db:"biography" json:"biography,omitempty"`
	IsAvailable   bool       `db:"is_available" json:"is_available"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Consultation records a clinical encounter, optionally linked to the
// appointment that scheduled it.
type Consultation struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Date          time.Time  `db:"date" json:"date"`
	Reason        string     `db:"reason" json:"reason"`
	Diagnosis     *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Prescription groups the medication lines issued from one consultation.
type Prescription struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	ConsultationID uuid.UUID          `db:"consultation_id" json:"consultation_id"`
	PrescribedAt   time.Time          `db:"prescribed_at" json:"prescribed_at"`
	Notes          *string            `db:"notes" json:"notes,omitempty"`
	Items          []PrescriptionItem `db:"-" json:"items"`
}

type PrescriptionItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	DurationDays   int       `db:"duration_days" json:"duration_days"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
}
