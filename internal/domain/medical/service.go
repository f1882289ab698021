package medical

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

type Service struct {
	specialties   SpecialtyRepository
	doctors       DoctorRepository
	consultations ConsultationRepository
	prescriptions PrescriptionRepository
	patients      PatientDirectory
	logger        zerolog.Logger
}

func NewService(
	specialties SpecialtyRepository,
	doctors DoctorRepository,
	consultations ConsultationRepository,
	prescriptions PrescriptionRepository,
	patients PatientDirectory,
	logger zerolog.Logger,
) *Service {
	return &Service{
		specialties:   specialties,
		doctors:       doctors,
		consultations: consultations,
		prescriptions: prescriptions,
		patients:      patients,
		logger:        logger,
	}
}

// =========== Specialties ===========

func (s *Service) CreateSpecialty(ctx context.Context, name string, description *string) (*Specialty, error) {
	if name == "" {
		return nil, apperror.NewValidation("name", "name is required")
	}
	if existing, err := s.specialties.GetByName(ctx, name); err == nil && existing != nil {
		return nil, apperror.NewConflict("specialty %q already exists", name)
	} else if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	sp := &Specialty{Name: name, Description: description}
	if err := s.specialties.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) ListSpecialties(ctx context.Context) ([]*Specialty, error) {
	return s.specialties.List(ctx)
}

// =========== Doctors ===========

// RegisterDoctorInput links an existing user account to a clinical profile.
type RegisterDoctorInput struct {
	UserID        uuid.UUID  `json:"user_id"`
	SpecialtyID   *uuid.UUID `json:"specialty_id,omitempty"`
	LicenseNumber string     `json:"license_number"`
	Biography     *string    `json:"biography,omitempty"`
}

func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*Doctor, error) {
	v := &apperror.ValidationError{}
	if in.UserID == uuid.Nil {
		v.Add("user_id", "user id is required")
	}
	if in.LicenseNumber == "" {
		v.Add("license_number", "license number is required")
	}
	if v.HasErrors() {
		return nil, v
	}
	if in.SpecialtyID != nil {
		if _, err := s.specialties.GetByID(ctx, *in.SpecialtyID); err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewValidation("specialty_id", "unknown specialty")
			}
			return nil, err
		}
	}
	if existing, err := s.doctors.GetByUserID(ctx, in.UserID); err == nil && existing != nil {
		return nil, apperror.NewConflict("user already has a doctor profile")
	} else if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	d := &Doctor{
		UserID:        in.UserID,
		SpecialtyID:   in.SpecialtyID,
		LicenseNumber: in.LicenseNumber,
		Biography:     in.Biography,
		IsAvailable:   true,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("doctor profile created")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetDoctorByUser(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByUserID(ctx, userID)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, f, limit, offset)
}

// SetAvailability toggles whether a doctor accepts new appointments.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.IsAvailable = available
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// =========== Consultations ===========

type ConsultationInput struct {
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Date          time.Time  `json:"date"`
	Reason        string     `json:"reason"`
	Diagnosis     *string    `json:"diagnosis,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// CreateConsultation records an encounter authored by the given doctor.
func (s *Service) CreateConsultation(ctx context.Context, doctorID uuid.UUID, in ConsultationInput) (*Consultation, error) {
	v := &apperror.ValidationError{}
	if in.PatientID == uuid.Nil {
		v.Add("patient_id", "patient id is required")
	}
	if in.Reason == "" {
		v.Add("reason", "reason is required")
	}
	if v.HasErrors() {
		return nil, v
	}
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	ok, err := s.patients.PatientExists(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NewValidation("patient_id", "unknown patient")
	}

	c := &Consultation{
		AppointmentID: in.AppointmentID,
		PatientID:     in.PatientID,
		DoctorID:      doctorID,
		Date:          in.Date,
		Reason:        in.Reason,
		Diagnosis:     in.Diagnosis,
		Notes:         in.Notes,
	}
	if c.Date.IsZero() {
		c.Date = time.Now().UTC()
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.consultations.GetByID(ctx, id)
}

func (s *Service) ListConsultations(ctx context.Context, f ConsultationFilter, limit, offset int) ([]*Consultation, int, error) {
	return s.consultations.List(ctx, f, limit, offset)
}

type ConsultationUpdate struct {
	Reason    *string `json:"reason,omitempty"`
	Diagnosis *string `json:"diagnosis,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// UpdateConsultation lets the authoring doctor amend the record.
func (s *Service) UpdateConsultation(ctx context.Context, id, actorDoctorID uuid.UUID, in ConsultationUpdate) (*Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.DoctorID != actorDoctorID {
		return nil, apperror.NewPermission("only the authoring doctor can amend a consultation")
	}
	if in.Reason != nil {
		if *in.Reason == "" {
			return nil, apperror.NewValidation("reason", "reason is required")
		}
		c.Reason = *in.Reason
	}
	if in.Diagnosis != nil {
		c.Diagnosis = in.Diagnosis
	}
	if in.Notes != nil {
		c.Notes = in.Notes
	}
	if err := s.consultations.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// =========== Prescriptions ===========

type PrescriptionInput struct {
	Notes *string                 `json:"notes,omitempty"`
	Items []PrescriptionItemInput `json:"items"`
}

type PrescriptionItemInput struct {
	MedicationName string  `json:"medication_name"`
	Dosage         string  `json:"dosage"`
	Frequency      string  `json:"frequency"`
	DurationDays   int     `json:"duration_days"`
	Instructions   *string `json:"instructions,omitempty"`
}

// IssuePrescription attaches a prescription to a consultation. Only the
// doctor who authored the consultation may prescribe from it.
func (s *Service) IssuePrescription(ctx context.Context, consultationID, actorDoctorID uuid.UUID, in PrescriptionInput) (*Prescription, error) {
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.DoctorID != actorDoctorID {
		return nil, apperror.NewPermission("only the authoring doctor can prescribe from a consultation")
	}

	v := &apperror.ValidationError{}
	if len(in.Items) == 0 {
		v.Add("items", "at least one medication line is required")
	}
	for i, it := range in.Items {
		if it.MedicationName == "" {
			v.Add(fmt.Sprintf("items.%d.medication_name", i), "medication name is required")
		}
		if it.Dosage == "" {
			v.Add(fmt.Sprintf("items.%d.dosage", i), "dosage is required")
		}
		if it.Frequency == "" {
			v.Add(fmt.Sprintf("items.%d.frequency", i), "frequency is required")
		}
		if it.DurationDays <= 0 {
			v.Add(fmt.Sprintf("items.%d.duration_days", i), "duration must be positive")
		}
	}
	if v.HasErrors() {
		return nil, v
	}

	p := &Prescription{
		ConsultationID: consultationID,
		PrescribedAt:   time.Now().UTC(),
		Notes:          in.Notes,
	}
	for _, it := range in.Items {
		p.Items = append(p.Items, PrescriptionItem{
			MedicationName: it.MedicationName,
			Dosage:         it.Dosage,
			Frequency:      it.Frequency,
			DurationDays:   it.DurationDays,
			Instructions:   it.Instructions,
		})
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("consultation_id", consultationID.String()).
		Int("items", len(p.Items)).
		Msg("prescription issued")
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, consultationID uuid.UUID) ([]*Prescription, error) {
	if _, err := s.consultations.GetByID(ctx, consultationID); err != nil {
		return nil, err
	}
	return s.prescriptions.ListByConsultation(ctx, consultationID)
}
