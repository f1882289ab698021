package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender writes outbound email to the log instead of a real
// provider. It is the default until an SMTP or API-backed sender is
// configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("outbound notification")
	return nil
}

// LogSMSSender writes outbound SMS to the log instead of a gateway.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Int("body_len", len(body)).
		Msg("outbound notification")
	return nil
}
