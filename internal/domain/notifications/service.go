package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/internal/platform/notification"
	"github.com/trimed/hospital/pkg/apperror"
)

var validKinds = map[string]bool{
	KindAppointmentReminder: true,
	KindAppointmentStatus:   true,
	KindBilling:             true,
	KindSystem:              true,
}

// ReminderAppointment is one upcoming appointment due a reminder,
// flattened to what the reminder needs.
type ReminderAppointment struct {
	ID            uuid.UUID
	PatientUserID *uuid.UUID
	PatientName   string
	DoctorName    string
	Email         string
	Phone         string
	StartAt       time.Time
}

// ReminderSource feeds the reminder loop. The wiring layer adapts the
// agenda to this shape so this package stays clear of appointment
// internals.
type ReminderSource interface {
	DueReminders(ctx context.Context, within time.Duration) ([]*ReminderAppointment, error)
	MarkSent(ctx context.Context, appointmentID uuid.UUID) error
}

// Service persists in-app notifications and drives outbound delivery
// through the platform dispatcher.
type Service struct {
	repo       NotificationRepository
	prefs      PreferenceRepository
	dispatcher *notification.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo NotificationRepository, prefs PreferenceRepository, dispatcher *notification.Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		prefs:      prefs,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Notify stores an in-app notification for a user.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, kind, title, body string) (*Notification, error) {
	v := &apperror.ValidationError{}
	if !validKinds[kind] {
		v.Add("type", "unknown notification kind")
	}
	if title == "" {
		v.Add("titre", "title is required")
	}
	if v.HasErrors() {
		return nil, v
	}

	n := &Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the actor's own notifications as read.
func (s *Service) MarkRead(ctx context.Context, id, actorUserID uuid.UUID) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != actorUserID {
		return nil, apperror.NewPermission("this notification belongs to another user")
	}
	if n.IsRead {
		return n, nil
	}
	n.MarkRead(s.now())
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// MarkAllRead marks every unread notification the user has.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	unread, _, err := s.repo.ListByUser(ctx, userID, true, 500, 0)
	if err != nil {
		return 0, err
	}
	at := s.now()
	for _, n := range unread {
		n.MarkRead(at)
		if err := s.repo.Update(ctx, n); err != nil {
			return 0, err
		}
	}
	return len(unread), nil
}

// Preferences returns the user's settings, creating the defaults on
// first read.
func (s *Service) Preferences(ctx context.Context, userID uuid.UUID) (*Preference, error) {
	p, err := s.prefs.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	p = defaultPreference(userID)
	if err := s.prefs.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PreferenceInput carries the editable delivery settings.
type PreferenceInput struct {
	EmailEnabled      bool `json:"email_actif"`
	SMSEnabled        bool `json:"sms_actif"`
	RemindersEnabled  bool `json:"rappels_actifs"`
	ReminderLeadHours int  `json:"delai_rappel_heures"`
}

func (s *Service) UpdatePreferences(ctx context.Context, userID uuid.UUID, in PreferenceInput) (*Preference, error) {
	if in.ReminderLeadHours < 1 || in.ReminderLeadHours > 168 {
		return nil, apperror.NewValidation("delai_rappel_heures", "reminder lead time must be between 1 and 168 hours")
	}

	p := &Preference{
		UserID:            userID,
		EmailEnabled:      in.EmailEnabled,
		SMSEnabled:        in.SMSEnabled,
		RemindersEnabled:  in.RemindersEnabled,
		ReminderLeadHours: in.ReminderLeadHours,
	}
	if err := s.prefs.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DispatchReminders sends every due appointment reminder and returns
// how many were delivered. A failure on one appointment is logged and
// the loop moves on.
func (s *Service) DispatchReminders(ctx context.Context, source ReminderSource, within time.Duration) (int, error) {
	due, err := source.DueReminders(ctx, within)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, appt := range due {
		delivered, err := s.remind(ctx, source, appt)
		if err != nil {
			s.logger.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to send appointment reminder")
			continue
		}
		if delivered {
			sent++
		}
	}
	return sent, nil
}

// remind reports whether a reminder was actually delivered. Opted-out
// appointments are marked handled without a delivery, and appointments
// not yet inside the patient's lead window are left for a later run.
func (s *Service) remind(ctx context.Context, source ReminderSource, appt *ReminderAppointment) (bool, error) {
	prefs := defaultPreference(uuid.Nil)
	if appt.PatientUserID != nil {
		p, err := s.Preferences(ctx, *appt.PatientUserID)
		if err != nil {
			return false, err
		}
		prefs = p
	}
	if !prefs.RemindersEnabled {
		return false, source.MarkSent(ctx, appt.ID)
	}
	if s.now().Add(time.Duration(prefs.ReminderLeadHours) * time.Hour).Before(appt.StartAt) {
		return false, nil
	}

	data := map[string]string{
		"patient_name": appt.PatientName,
		"doctor":       appt.DoctorName,
		"date":         appt.StartAt.Format("02/01/2006"),
		"time":         appt.StartAt.Format("15:04"),
	}

	if prefs.EmailEnabled && appt.Email != "" {
		if _, err := s.dispatcher.SendFromTemplate(ctx, "appointment-reminder", data, appt.Email); err != nil {
			return false, err
		}
	}
	if prefs.SMSEnabled && appt.Phone != "" {
		if _, err := s.dispatcher.SendFromTemplate(ctx, "appointment-reminder-sms", data, appt.Phone); err != nil {
			return false, err
		}
	}

	if appt.PatientUserID != nil {
		title := fmt.Sprintf("Rappel: rendez-vous le %s", appt.StartAt.Format("02/01/2006 15:04"))
		body := fmt.Sprintf("Votre rendez-vous avec %s approche.", appt.DoctorName)
		if _, err := s.Notify(ctx, *appt.PatientUserID, KindAppointmentReminder, title, body); err != nil {
			return false, err
		}
	}

	return true, source.MarkSent(ctx, appt.ID)
}
