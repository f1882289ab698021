package notification

import (
	"context"
	"strings"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// Template Engine Tests
// ---------------------------------------------------------------------------

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Name:    "Test Template",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
		Channel: ChannelEmail,
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q, want %q", subject, "Hello Alice")
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q, want %q", body, "Dear Alice, your code is 1234.")
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	_, _, err := eng.Render("nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	builtIn := []string{
		"appointment-reminder",
		"appointment-status",
		"invoice-issued",
		"welcome",
		"appointment-reminder-sms",
	}
	for _, id := range builtIn {
		_, _, err := eng.Render(id, map[string]string{
			"patient_name":   "Test",
			"date":           "2026-01-01",
			"time":           "10:00",
			"doctor":         "Dr Dupont",
			"status":         "confirme",
			"invoice_number": "FAC-2026-0001",
			"amount":         "120.00",
			"hospital_name":  "Hopital Central",
			"user_name":      "Test",
		})
		if err != nil {
			t.Errorf("built-in template %q not found: %v", id, err)
		}
	}
}

func TestTemplateEngine_RenderMissingKey(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "partial-tpl",
		Name:    "Partial",
		Subject: "Hi {{name}}",
		Body:    "Your code is {{code}} and token is {{token}}.",
		Channel: ChannelEmail,
	})

	subject, body, err := eng.Render("partial-tpl", map[string]string{
		"name": "Bob",
		"code": "5678",
		// "token" deliberately missing
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hi Bob" {
		t.Errorf("subject = %q, want %q", subject, "Hi Bob")
	}
	// unreplaced keys left as-is
	expected := "Your code is 5678 and token is {{token}}."
	if body != expected {
		t.Errorf("body = %q, want %q", body, expected)
	}
}

// ---------------------------------------------------------------------------
// Dispatcher Tests
// ---------------------------------------------------------------------------

func TestDispatcher_SendEmail(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	msg := &Message{
		Channel:   ChannelEmail,
		Recipient: "alice@example.com",
		Subject:   "Test Subject",
		Body:      "Test Body",
	}

	err := d.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != "sent" {
		t.Errorf("status = %q, want %q", msg.Status, "sent")
	}
	if msg.SentAt == nil {
		t.Error("SentAt should be set after successful send")
	}
	if len(emailMock.Calls()) != 1 {
		t.Errorf("expected 1 email call, got %d", len(emailMock.Calls()))
	}
	call := emailMock.Calls()[0]
	if call.To != "alice@example.com" || call.Subject != "Test Subject" || call.Body != "Test Body" {
		t.Errorf("unexpected email call: %+v", call)
	}
}

func TestDispatcher_SendSMS(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	msg := &Message{
		Channel:   ChannelSMS,
		Recipient: "+33612345678",
		Body:      "Votre code est 1234",
	}

	err := d.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != "sent" {
		t.Errorf("status = %q, want %q", msg.Status, "sent")
	}
	if len(smsMock.Calls()) != 1 {
		t.Errorf("expected 1 sms call, got %d", len(smsMock.Calls()))
	}
	call := smsMock.Calls()[0]
	if call.To != "+33612345678" || call.Body != "Votre code est 1234" {
		t.Errorf("unexpected sms call: %+v", call)
	}
}

func TestDispatcher_SendFailed(t *testing.T) {
	emailMock := &MockEmailSender{ShouldFail: true, FailError: "SMTP connection refused"}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	msg := &Message{
		Channel:   ChannelEmail,
		Recipient: "fail@example.com",
		Subject:   "Will Fail",
		Body:      "This should fail",
	}

	err := d.Send(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error from failed send")
	}
	if msg.Status != "failed" {
		t.Errorf("status = %q, want %q", msg.Status, "failed")
	}
	if msg.Error != "SMTP connection refused" {
		t.Errorf("error = %q, want %q", msg.Error, "SMTP connection refused")
	}
}

func TestDispatcher_SendFromTemplate(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	eng := NewTemplateEngine()
	d := NewDispatcher(emailMock, smsMock, eng)

	msg, err := d.SendFromTemplate(context.Background(), "appointment-reminder", map[string]string{
		"patient_name": "Alice",
		"date":         "2026-03-01",
		"time":         "14:00",
		"doctor":       "Dr Dupont",
	}, "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != "sent" {
		t.Errorf("status = %q, want %q", msg.Status, "sent")
	}
	if msg.TemplateID != "appointment-reminder" {
		t.Errorf("templateID = %q, want %q", msg.TemplateID, "appointment-reminder")
	}
	if !strings.Contains(msg.Body, "Alice") {
		t.Errorf("body should contain patient name, got %q", msg.Body)
	}
}

func TestDispatcher_GetMessage(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	msg := &Message{
		Channel:   ChannelEmail,
		Recipient: "get@example.com",
		Subject:   "Get Test",
		Body:      "Body",
	}
	_ = d.Send(context.Background(), msg)

	got, err := d.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != msg.ID {
		t.Errorf("ID = %q, want %q", got.ID, msg.ID)
	}
}

func TestDispatcher_GetNotFound(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	_, err := d.GetMessage(context.Background(), "nonexistent-id")
	if err == nil {
		t.Fatal("expected error for nonexistent message")
	}
}

func TestDispatcher_ListByRecipient(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	for i := 0; i < 5; i++ {
		_ = d.Send(context.Background(), &Message{
			Channel:   ChannelEmail,
			Recipient: "list@example.com",
			Subject:   "List Test",
			Body:      "Body",
		})
	}
	// different recipient
	_ = d.Send(context.Background(), &Message{
		Channel:   ChannelEmail,
		Recipient: "other@example.com",
		Subject:   "Other",
		Body:      "Other Body",
	})

	list, err := d.ListByRecipient(context.Background(), "list@example.com", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 5 {
		t.Errorf("len = %d, want 5", len(list))
	}

	// test limit
	list2, err := d.ListByRecipient(context.Background(), "list@example.com", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list2) != 3 {
		t.Errorf("len = %d, want 3", len(list2))
	}
}

func TestDispatcher_Retry(t *testing.T) {
	emailMock := &MockEmailSender{ShouldFail: true, FailError: "temporary failure"}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	msg := &Message{
		Channel:   ChannelEmail,
		Recipient: "retry@example.com",
		Subject:   "Retry Test",
		Body:      "Retry Body",
	}
	_ = d.Send(context.Background(), msg)
	if msg.Status != "failed" {
		t.Fatalf("expected failed status, got %q", msg.Status)
	}

	// Fix the mock so retry succeeds
	emailMock.ShouldFail = false

	err := d.Retry(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := d.GetMessage(context.Background(), msg.ID)
	if got.Status != "sent" {
		t.Errorf("status = %q, want %q after retry", got.Status, "sent")
	}
	if got.SentAt == nil {
		t.Error("SentAt should be set after successful retry")
	}
	if got.Error != "" {
		t.Errorf("error should be cleared after retry, got %q", got.Error)
	}
}

func TestDispatcher_RetryNonFailed(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	msg := &Message{
		Channel:   ChannelEmail,
		Recipient: "ok@example.com",
		Subject:   "OK",
		Body:      "OK Body",
	}
	_ = d.Send(context.Background(), msg)
	if msg.Status != "sent" {
		t.Fatalf("expected sent status, got %q", msg.Status)
	}

	err := d.Retry(context.Background(), msg.ID)
	if err == nil {
		t.Fatal("expected error when retrying non-failed message")
	}
}

func TestDispatcher_Stats(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	// Send 3 successful emails
	for i := 0; i < 3; i++ {
		_ = d.Send(context.Background(), &Message{
			Channel:   ChannelEmail,
			Recipient: "stats@example.com",
			Subject:   "Stats",
			Body:      "Stats Body",
		})
	}

	// Send 2 failed emails
	emailMock.ShouldFail = true
	emailMock.FailError = "fail"
	for i := 0; i < 2; i++ {
		_ = d.Send(context.Background(), &Message{
			Channel:   ChannelEmail,
			Recipient: "stats@example.com",
			Subject:   "Stats Fail",
			Body:      "Fail Body",
		})
	}

	stats := d.Stats(context.Background())
	if stats["sent"] != 3 {
		t.Errorf("sent = %d, want 3", stats["sent"])
	}
	if stats["failed"] != 2 {
		t.Errorf("failed = %d, want 2", stats["failed"])
	}
}

func TestDispatcher_ConcurrentSend(t *testing.T) {
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	d := NewDispatcher(emailMock, smsMock, NewTemplateEngine())

	var wg sync.WaitGroup
	count := 50
	wg.Add(count)

	for i := 0; i < count; i++ {
		go func() {
			defer wg.Done()
			_ = d.Send(context.Background(), &Message{
				Channel:   ChannelEmail,
				Recipient: "concurrent@example.com",
				Subject:   "Concurrent",
				Body:      "Concurrent Body",
			})
		}()
	}
	wg.Wait()

	stats := d.Stats(context.Background())
	if stats["sent"] != count {
		t.Errorf("sent = %d, want %d", stats["sent"], count)
	}
}
