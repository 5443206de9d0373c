package sms

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Sender is the outbound SMS boundary. Numbers are normalized to digits
// only before dispatch.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// DigitsOnly strips everything but digits from a phone number.
func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LogSender writes outbound messages to the log. Default implementation
// for development environments.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendCode(ctx context.Context, phone, code string) error {
	s.log.Info("Verification SMS dispatched",
		zap.String("to", DigitsOnly(phone)),
	)
	return nil
}
