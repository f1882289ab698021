package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	KindAppointmentReminder = "appointment-reminder"
	KindAppointmentStatus   = "appointment-status"
	KindBilling             = "billing"
	KindSystem              = "system"
)

// Notification is an in-app message shown to a user until they mark it
// read. Outbound email/SMS delivery is handled separately.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Kind      string     `db:"kind" json:"type"`
	Title     string     `db:"title" json:"titre"`
	Body      string     `db:"body" json:"contenu"`
	IsRead    bool       `db:"is_read" json:"lu"`
	ReadAt    *time.Time `db:"read_at" json:"lu_le,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// MarkRead flips the notification to read at the given instant. A
// second call keeps the original timestamp.
func (n *Notification) MarkRead(at time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &at
}

// Preference holds a user's delivery settings. A row is created lazily
// with these defaults the first time the user's preferences are read.
type Preference struct {
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	EmailEnabled      bool      `db:"email_enabled" json:"email_actif"`
	SMSEnabled        bool      `db:"sms_enabled" json:"sms_actif"`
	RemindersEnabled  bool      `db:"reminders_enabled" json:"rappels_actifs"`
	ReminderLeadHours int       `db:"reminder_lead_hours" json:"delai_rappel_heures"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func defaultPreference(userID uuid.UUID) *Preference {
	return &Preference{
		UserID:            userID,
		EmailEnabled:      true,
		SMSEnabled:        false,
		RemindersEnabled:  true,
		ReminderLeadHours: 24,
	}
}
