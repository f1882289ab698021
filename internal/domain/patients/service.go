package patients

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/pkg/apperror"
)

var validGenders = map[string]bool{
	"homme": true,
	"femme": true,
	"autre": true,
}

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true,
	"B+": true, "B-": true,
	"AB+": true, "AB-": true,
	"O+": true, "O-": true,
}

type Service struct {
	patients  PatientRepository
	followUps FollowUpRepository
	logger    zerolog.Logger
}

func NewService(patients PatientRepository, followUps FollowUpRepository, logger zerolog.Logger) *Service {
	return &Service{patients: patients, followUps: followUps, logger: logger}
}

func validatePatient(p *Patient, now time.Time) error {
	v := &apperror.ValidationError{}
	if p.FirstName == "" {
		v.Add("first_name", "first name is required")
	}
	if p.LastName == "" {
		v.Add("last_name", "last name is required")
	}
	if p.BirthDate.IsZero() {
		v.Add("birth_date", "birth date is required")
	} else if p.BirthDate.After(now) {
		v.Add("birth_date", "birth date cannot be in the future")
	}
	if !validGenders[p.Gender] {
		v.Add("gender", "gender must be one of homme, femme, autre")
	}
	if p.Phone == "" {
		v.Add("phone", "phone is required")
	}
	if p.BloodGroup != nil && !validBloodGroups[*p.BloodGroup] {
		v.Add("blood_group", "unknown blood group")
	}
	if v.HasErrors() {
		return v
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) (*Patient, error) {
	if err := validatePatient(p, time.Now()); err != nil {
		return nil, err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// GetByUserID resolves the patient record linked to a portal account.
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return s.patients.GetByUserID(ctx, userID)
}

// PatientExists reports whether a patient record exists. Other domains
// depend on this instead of reaching into the repository.
func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.patients.GetByID(ctx, id)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, p *Patient) (*Patient, error) {
	current, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ID = current.ID
	p.CreatedAt = current.CreatedAt
	if err := validatePatient(p, time.Now()); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, f, limit, offset)
}

func validateFollowUp(f *FollowUp) error {
	v := &apperror.ValidationError{}
	if f.WeightKg != nil && (*f.WeightKg <= 0 || *f.WeightKg > 500) {
		v.Add("weight_kg", "weight must be between 0 and 500 kg")
	}
	if f.HeightCm != nil && (*f.HeightCm <= 0 || *f.HeightCm > 280) {
		v.Add("height_cm", "height must be between 0 and 280 cm")
	}
	if f.TemperatureC != nil && (*f.TemperatureC < 30 || *f.TemperatureC > 45) {
		v.Add("temperature_c", "temperature must be between 30 and 45 C")
	}
	if f.SystolicBP != nil && *f.SystolicBP <= 0 {
		v.Add("systolic_bp", "systolic pressure must be positive")
	}
	if f.DiastolicBP != nil && *f.DiastolicBP <= 0 {
		v.Add("diastolic_bp", "diastolic pressure must be positive")
	}
	if f.SystolicBP != nil && f.DiastolicBP != nil && *f.DiastolicBP >= *f.SystolicBP {
		v.Add("diastolic_bp", "diastolic pressure must be below systolic")
	}
	if f.HeartRate != nil && (*f.HeartRate <= 0 || *f.HeartRate > 300) {
		v.Add("heart_rate", "heart rate must be between 0 and 300")
	}
	if v.HasErrors() {
		return v
	}
	return nil
}

// RecordFollowUp stores a vitals measurement for an existing patient.
func (s *Service) RecordFollowUp(ctx context.Context, patientID, recordedBy uuid.UUID, f *FollowUp) (*FollowUp, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	if err := validateFollowUp(f); err != nil {
		return nil, err
	}
	f.PatientID = patientID
	f.RecordedBy = recordedBy
	if f.RecordedAt.IsZero() {
		f.RecordedAt = time.Now().UTC()
	}
	if err := s.followUps.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFollowUps(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*FollowUp, int, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.followUps.ListByPatient(ctx, patientID, limit, offset)
}
