package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer renders code-delivery emails and writes them to the log instead
// of an SMTP relay. Default implementation for development environments.
type LogMailer struct {
	log *zap.Logger
	ttl int // code lifetime in minutes, for the template body
}

func NewLogMailer(log *zap.Logger, ttlMinutes int) *LogMailer {
	return &LogMailer{log: log, ttl: ttlMinutes}
}

func (m *LogMailer) SendVerificationCode(ctx context.Context, address, name, code string) error {
	body, err := RenderVerificationBody(TemplateData{Name: name, Code: code, TTLMinutes: m.ttl})
	if err != nil {
		return err
	}

	m.log.Info("Verification email dispatched",
		zap.String("to", address),
		zap.Int("body_size", len(body)),
	)
	return nil
}

func (m *LogMailer) SendPasswordResetCode(ctx context.Context, address, name, code string) error {
	body, err := RenderPasswordResetBody(TemplateData{Name: name, Code: code, TTLMinutes: m.ttl})
	if err != nil {
		return err
	}

	m.log.Info("Password reset email dispatched",
		zap.String("to", address),
		zap.Int("body_size", len(body)),
	)
	return nil
}
