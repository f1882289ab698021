package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/internal/platform/auth"
	"github.com/trimed/hospital/pkg/apperror"
)

// PatientDirectory is the slice of the patients package this service needs.
type PatientDirectory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	// PatientIDForUser resolves the patient record linked to a portal
	// account. Returns a not-found error when the account has none.
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// DoctorDirectory is the slice of the medical package this service needs.
type DoctorDirectory interface {
	// DoctorBookable reports whether the doctor exists and accepts
	// new appointments.
	DoctorBookable(ctx context.Context, id uuid.UUID) (exists, available bool, err error)
}

// Hours are the tenant's booking rules, sourced from hospital settings.
type Hours struct {
	StartMinutes       int
	EndMinutes         int
	SlotStepMin        int
	DefaultDurationMin int
	Location           *time.Location
}

type HoursProvider interface {
	Hours(ctx context.Context) (Hours, error)
}

// cancellationNotice is how long before the start a patient may still
// cancel their own appointment.
const cancellationNotice = 24 * time.Hour

type Service struct {
	types    TypeRepository
	statuses StatusRepository
	appts    AppointmentRepository
	patients PatientDirectory
	doctors  DoctorDirectory
	hours    HoursProvider
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(
	types TypeRepository,
	statuses StatusRepository,
	appts AppointmentRepository,
	patients PatientDirectory,
	doctors DoctorDirectory,
	hours HoursProvider,
	logger zerolog.Logger,
) *Service {
	return &Service{
		types:    types,
		statuses: statuses,
		appts:    appts,
		patients: patients,
		doctors:  doctors,
		hours:    hours,
		logger:   logger,
		now:      time.Now,
	}
}

// =========== Types and statuses ===========

func (s *Service) CreateType(ctx context.Context, t *AppointmentType) (*AppointmentType, error) {
	v := &apperror.ValidationError{}
	if t.Name == "" {
		v.Add("name", "name is required")
	}
	if t.DefaultDurationMin != nil && *t.DefaultDurationMin <= 0 {
		v.Add("default_duration_min", "default duration must be positive")
	}
	if v.HasErrors() {
		return nil, v
	}
	if err := s.types.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListTypes(ctx context.Context) ([]*AppointmentType, error) {
	return s.types.List(ctx)
}

func (s *Service) ListStatuses(ctx context.Context) ([]*AppointmentStatus, error) {
	return s.statuses.List(ctx)
}

// =========== Booking ===========

type CreateInput struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	TypeID      *uuid.UUID `json:"type_id,omitempty"`
	StartAt     time.Time  `json:"start_at"`
	DurationMin *int       `json:"duration_min,omitempty"`
	Reason      string     `json:"reason"`
	Notes       *string    `json:"notes,omitempty"`
}

// resolveDuration picks the explicit duration, then the type default,
// then the hospital default.
func (s *Service) resolveDuration(ctx context.Context, in CreateInput, h Hours) (int, error) {
	if in.DurationMin != nil {
		if *in.DurationMin <= 0 {
			return 0, apperror.NewValidation("duration_min", "duration must be positive")
		}
		return *in.DurationMin, nil
	}
	if in.TypeID != nil {
		t, err := s.types.GetByID(ctx, *in.TypeID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return 0, apperror.NewValidation("type_id", "unknown appointment type")
			}
			return 0, err
		}
		if t.DefaultDurationMin != nil {
			return *t.DefaultDurationMin, nil
		}
	}
	return h.DefaultDurationMin, nil
}

func minutesOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// validateWindow checks the interval against business days and hours.
func validateWindow(v *apperror.ValidationError, start, end time.Time, h Hours, now time.Time) {
	if start.IsZero() {
		v.Add("start_at", "start time is required")
		return
	}
	if start.Before(now) {
		v.Add("start_at", "appointments cannot start in the past")
	}
	local := start.In(h.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		v.Add("start_at", "appointments cannot be booked on weekends")
	}
	if minutesOfDay(start, h.Location) < h.StartMinutes {
		v.Add("start_at", "appointment starts before opening hours")
	}
	if endMin := minutesOfDay(end, h.Location); endMin > h.EndMinutes || end.In(h.Location).Day() != local.Day() {
		v.Add("start_at", "appointment ends after closing hours")
	}
}

// Create books an appointment. Any authenticated user may book; patients
// are restricted to their own patient record (an omitted patient_id is
// resolved to it).
func (s *Service) Create(ctx context.Context, createdBy uuid.UUID, actorRole auth.Role, in CreateInput) (*Appointment, error) {
	if actorRole == auth.RolePatient {
		own, err := s.patients.PatientIDForUser(ctx, createdBy)
		if err != nil {
			return nil, apperror.NewPermission("no patient record for this account")
		}
		if in.PatientID == uuid.Nil {
			in.PatientID = own
		} else if in.PatientID != own {
			return nil, apperror.NewPermission("patients can only book appointments for themselves")
		}
	}

	h, err := s.hours.Hours(ctx)
	if err != nil {
		return nil, err
	}

	v := &apperror.ValidationError{}
	if in.PatientID == uuid.Nil {
		v.Add("patient_id", "patient id is required")
	}
	if in.DoctorID == uuid.Nil {
		v.Add("doctor_id", "doctor id is required")
	}
	if in.Reason == "" {
		v.Add("reason", "reason is required")
	}
	duration, err := s.resolveDuration(ctx, in, h)
	if err != nil {
		return nil, err
	}
	end := in.StartAt.Add(time.Duration(duration) * time.Minute)
	validateWindow(v, in.StartAt, end, h, s.now())
	if v.HasErrors() {
		return nil, v
	}

	if ok, err := s.patients.PatientExists(ctx, in.PatientID); err != nil {
		return nil, err
	} else if !ok {
		return nil, apperror.NewValidation("patient_id", "unknown patient")
	}
	exists, available, err := s.doctors.DoctorBookable(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NewValidation("doctor_id", "unknown doctor")
	}
	if !available {
		return nil, apperror.NewConflict("the doctor is not accepting appointments")
	}

	scheduled, err := s.statuses.GetByCode(ctx, StatusScheduled)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:   in.PatientID,
		DoctorID:    in.DoctorID,
		TypeID:      in.TypeID,
		StatusID:    scheduled.ID,
		StatusCode:  scheduled.Code,
		StartAt:     in.StartAt,
		EndAt:       end,
		DurationMin: duration,
		Reason:      in.Reason,
		Notes:       in.Notes,
		CreatedBy:   createdBy,
	}
	if err := s.appts.CreateExclusive(ctx, a); err != nil {
		return nil, err
	}
	if err := s.appts.AppendStatusChange(ctx, &StatusChange{
		AppointmentID: a.ID,
		ToStatus:      scheduled.Code,
		ChangedBy:     createdBy,
	}); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to record status history")
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Time("start_at", a.StartAt).
		Msg("appointment booked")
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

type RescheduleInput struct {
	StartAt     time.Time `json:"start_at"`
	DurationMin *int      `json:"duration_min,omitempty"`
	Reason      *string   `json:"reason,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

// Reschedule moves an appointment to a new slot, keeping its status.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := s.statuses.GetByCode(ctx, a.StatusCode)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal || current.IsCancellation {
		return nil, apperror.NewConflict("a %s appointment cannot be rescheduled", current.Code)
	}

	h, err := s.hours.Hours(ctx)
	if err != nil {
		return nil, err
	}
	duration := a.DurationMin
	if in.DurationMin != nil {
		if *in.DurationMin <= 0 {
			return nil, apperror.NewValidation("duration_min", "duration must be positive")
		}
		duration = *in.DurationMin
	}
	end := in.StartAt.Add(time.Duration(duration) * time.Minute)

	v := &apperror.ValidationError{}
	validateWindow(v, in.StartAt, end, h, s.now())
	if v.HasErrors() {
		return nil, v
	}

	taken, err := s.appts.HasOverlap(ctx, a.DoctorID, in.StartAt, end, &a.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperror.NewConflict("the doctor already has an appointment on this slot")
	}

	a.StartAt = in.StartAt
	a.EndAt = end
	a.DurationMin = duration
	if in.Reason != nil {
		a.Reason = *in.Reason
	}
	if in.Notes != nil {
		a.Notes = in.Notes
	}
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// =========== Status transitions ===========

// ChangeStatus moves an appointment through its lifecycle and appends
// to the status history. The status set is tenant data with descriptive
// flags, not a transition graph, so any status may follow any other.
// A cancellation reason is optional. Patients may only cancel their own
// upcoming appointments with at least 24 hours notice.
func (s *Service) ChangeStatus(ctx context.Context, id, actorUserID uuid.UUID, actorRole auth.Role, statusCode string, reason *string) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := s.statuses.GetByCode(ctx, statusCode)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Validationf("statut", "unknown status %q", statusCode)
		}
		return nil, err
	}
	if actorRole == auth.RolePatient {
		patientID, err := s.patients.PatientIDForUser(ctx, actorUserID)
		if err != nil {
			return nil, apperror.NewPermission("no patient record for this account")
		}
		if patientID != a.PatientID {
			return nil, apperror.NewPermission("patients can only manage their own appointments")
		}
		if !next.IsCancellation {
			return nil, apperror.NewPermission("patients can only cancel appointments")
		}
		if s.now().Add(cancellationNotice).After(a.StartAt) {
			return nil, apperror.NewPermission("appointments can only be cancelled more than 24 hours in advance")
		}
	}

	from := a.StatusCode
	a.StatusID = next.ID
	a.StatusCode = next.Code
	if next.IsCancellation {
		a.CancellationReason = reason
	}
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	if err := s.appts.AppendStatusChange(ctx, &StatusChange{
		AppointmentID: a.ID,
		FromStatus:    &from,
		ToStatus:      next.Code,
		Reason:        reason,
		ChangedBy:     actorUserID,
	}); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to record status history")
	}
	return a, nil
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	if _, err := s.appts.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.appts.StatusHistory(ctx, id)
}

// =========== Availability ===========

// ListAvailableSlots walks the doctor's business day in slot steps and
// returns the intervals where the requested duration fits.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, day time.Time, typeID *uuid.UUID) ([]Slot, error) {
	exists, _, err := s.doctors.DoctorBookable(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NewValidation("medecin", "unknown doctor")
	}

	h, err := s.hours.Hours(ctx)
	if err != nil {
		return nil, err
	}
	duration, err := s.resolveDuration(ctx, CreateInput{TypeID: typeID}, h)
	if err != nil {
		return nil, err
	}

	local := day.In(h.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return []Slot{}, nil
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.Location)
	dayStart := midnight.Add(time.Duration(h.StartMinutes) * time.Minute)
	dayEnd := midnight.Add(time.Duration(h.EndMinutes) * time.Minute)

	booked, err := s.appts.ListActiveBetween(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	step := time.Duration(h.SlotStepMin) * time.Minute
	span := time.Duration(duration) * time.Minute

	slots := []Slot{}
	for t := dayStart; !t.Add(span).After(dayEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		end := t.Add(span)
		free := true
		for _, b := range booked {
			if Overlaps(t, end, b.StartAt, b.EndAt) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, Slot{Start: t, End: end})
		}
	}
	return slots, nil
}

// CheckConflict reports whether the doctor already has a booking on the slot.
func (s *Service) CheckConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return s.appts.HasOverlap(ctx, doctorID, start, end, excludeID)
}

// =========== Agenda and reminders ===========

// Agenda lists appointments matching the filter. Patients are scoped to
// their own appointments regardless of the requested filter.
func (s *Service) Agenda(ctx context.Context, actorUserID uuid.UUID, actorRole auth.Role, f AgendaFilter, limit, offset int) ([]*Appointment, int, error) {
	if actorRole == auth.RolePatient {
		own, err := s.patients.PatientIDForUser(ctx, actorUserID)
		if err != nil {
			return nil, 0, apperror.NewPermission("no patient record for this account")
		}
		f.PatientID = &own
	}
	return s.appts.List(ctx, f, limit, offset)
}

// PendingReminders lists appointments starting within the window whose
// reminder has not been sent.
func (s *Service) PendingReminders(ctx context.Context, within time.Duration) ([]*Appointment, error) {
	now := s.now()
	return s.appts.PendingReminders(ctx, now, now.Add(within))
}

func (s *Service) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	return s.appts.MarkReminderSent(ctx, id)
}
