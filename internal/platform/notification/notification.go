// Package notification provides an Email/SMS delivery layer with template
// rendering, in-memory delivery tracking, and retry logic. The notifications
// domain package persists recipient-facing notifications; this package only
// performs the outbound delivery.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Message Types
// ---------------------------------------------------------------------------

// Channel represents the channel used to deliver a message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ---------------------------------------------------------------------------
// Message
// ---------------------------------------------------------------------------

// Message represents a single outbound delivery.
type Message struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Sender Interfaces
// ---------------------------------------------------------------------------

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable message template.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine manages message templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "appointment-reminder",
			Name:    "Appointment Reminder",
			Subject: "Rappel de rendez-vous pour {{patient_name}}",
			Body:    "Bonjour {{patient_name}}, nous vous rappelons votre rendez-vous du {{date}} a {{time}} avec {{doctor}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      "appointment-status",
			Name:    "Appointment Status Change",
			Subject: "Votre rendez-vous du {{date}} est {{status}}",
			Body:    "Bonjour {{patient_name}}, votre rendez-vous du {{date}} a {{time}} avec {{doctor}} est maintenant {{status}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      "invoice-issued",
			Name:    "Invoice Issued",
			Subject: "Facture {{invoice_number}}",
			Body:    "Bonjour {{patient_name}}, votre facture {{invoice_number}} d'un montant de {{amount}} EUR est disponible.",
			Channel: ChannelEmail,
		},
		{
			ID:      "welcome",
			Name:    "Welcome",
			Subject: "Bienvenue a {{hospital_name}}",
			Body:    "Bonjour {{user_name}}, votre compte a ete cree. Connectez-vous pour commencer.",
			Channel: ChannelEmail,
		},
		{
			ID:      "appointment-reminder-sms",
			Name:    "Appointment Reminder SMS",
			Body:    "Rappel: rendez-vous le {{date}} a {{time}} avec {{doctor}}.",
			Channel: ChannelSMS,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Mock Senders (test doubles)
// ---------------------------------------------------------------------------

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SendSMS records the call and optionally returns an error.
func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Dispatcher orchestrates sending, delivery tracking, and retries.
type Dispatcher struct {
	emailSender EmailSender
	smsSender   SMSSender
	templates   *TemplateEngine
	mu          sync.RWMutex
	messages    map[string]*Message
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(email EmailSender, sms SMSSender, tpl *TemplateEngine) *Dispatcher {
	return &Dispatcher{
		emailSender: email,
		smsSender:   sms,
		templates:   tpl,
		messages:    make(map[string]*Message),
	}
}

// Send dispatches a message through the appropriate channel, assigns an ID
// and timestamps, and tracks the result in-memory.
func (d *Dispatcher) Send(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now().UTC()
	msg.Status = "pending"

	sendErr := d.deliver(ctx, msg)

	if sendErr != nil {
		msg.Status = "failed"
		msg.Error = sendErr.Error()
	} else {
		msg.Status = "sent"
		sentAt := time.Now().UTC()
		msg.SentAt = &sentAt
	}

	d.mu.Lock()
	d.messages[msg.ID] = msg
	d.mu.Unlock()

	return sendErr
}

func (d *Dispatcher) deliver(ctx context.Context, msg *Message) error {
	switch msg.Channel {
	case ChannelEmail:
		return d.emailSender.SendEmail(ctx, msg.Recipient, msg.Subject, msg.Body)
	case ChannelSMS:
		return d.smsSender.SendSMS(ctx, msg.Recipient, msg.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", msg.Channel)
	}
}

// SendFromTemplate renders a template and sends the resulting message.
func (d *Dispatcher) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Message, error) {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	d.templates.mu.RLock()
	channel := d.templates.templates[templateID].Channel
	d.templates.mu.RUnlock()

	msg := &Message{
		Channel:      channel,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}

	if err := d.Send(ctx, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// GetMessage retrieves a tracked message by ID.
func (d *Dispatcher) GetMessage(_ context.Context, id string) (*Message, error) {
	d.mu.RLock()
	msg, ok := d.messages[id]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("message %q not found", id)
	}
	return msg, nil
}

// ListByRecipient returns messages for a given recipient, up to limit.
func (d *Dispatcher) ListByRecipient(_ context.Context, recipient string, limit int) ([]*Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*Message
	for _, msg := range d.messages {
		if msg.Recipient == recipient {
			result = append(result, msg)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// Retry re-sends a failed message. Returns an error if the message is not in
// "failed" status.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	d.mu.RLock()
	msg, ok := d.messages[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("message %q not found", id)
	}
	if msg.Status != "failed" {
		return fmt.Errorf("message %q is not in failed status (current: %s)", id, msg.Status)
	}

	sendErr := d.deliver(ctx, msg)

	d.mu.Lock()
	if sendErr != nil {
		msg.Status = "failed"
		msg.Error = sendErr.Error()
	} else {
		msg.Status = "sent"
		sentAt := time.Now().UTC()
		msg.SentAt = &sentAt
		msg.Error = ""
	}
	d.mu.Unlock()

	return sendErr
}

// Stats returns counts of tracked messages grouped by status.
func (d *Dispatcher) Stats(_ context.Context) map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, msg := range d.messages {
		stats[msg.Status]++
	}
	return stats
}
