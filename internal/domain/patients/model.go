package patients

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the administrative and medical record of a hospital patient.
// A patient may optionally be linked to a portal user account.
type Patient struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	UserID                *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	BirthDate             time.Time  `db:"birth_date" json:"birth_date"`
	Gender                string     `db:"gender" json:"gender"`
	BloodGroup            *string    `db:"blood_group" json:"blood_group,omitempty"`
	Phone                 string     `db:"phone" json:"phone"`
	Email                 *string    `db:"email" json:"email,omitempty"`
	Address               *string    `db:"address" json:"address,omitempty"`
	City                  *string    `db:"city" json:"city,omitempty"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	MedicalHistory        *string    `db:"medical_history" json:"medical_history,omitempty"`
	Allergies             *string    `db:"allergies" json:"allergies,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// Age in full years at the given reference time.
func (p *Patient) Age(at time.Time) int {
	years := at.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// FollowUp is one vitals measurement recorded during patient care.
type FollowUp struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	RecordedBy   uuid.UUID `db:"recorded_by" json:"recorded_by"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
	WeightKg     *float64  `db:"weight_kg" json:"weight_kg,omitempty"`
	HeightCm     *float64  `db:"height_cm" json:"height_cm,omitempty"`
	TemperatureC *float64  `db:"temperature_c" json:"temperature_c,omitempty"`
	SystolicBP   *int      `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP  *int      `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	HeartRate    *int      `db:"heart_rate" json:"heart_rate,omitempty"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
}

// BMI computes weight / height² in kg/m². Returns 0 when either
// measurement is missing or height is zero.
func (f *FollowUp) BMI() float64 {
	if f.WeightKg == nil || f.HeightCm == nil || *f.HeightCm == 0 {
		return 0
	}
	m := *f.HeightCm / 100
	return *f.WeightKg / (m * m)
}

// BMIInterpretation maps the BMI to the standard WHO bands.
func (f *FollowUp) BMIInterpretation() string {
	bmi := f.BMI()
	switch {
	case bmi == 0:
		return ""
	case bmi < 18.5:
		return "insuffisance ponderale"
	case bmi < 25:
		return "corpulence normale"
	case bmi < 30:
		return "surpoids"
	default:
		return "obesite"
	}
}
