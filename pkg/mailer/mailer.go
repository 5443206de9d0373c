package mailer

import (
	"context"
)

// Mailer is the outbound email boundary. Implementations are external
// collaborators; the core only requires that a failed send surfaces as an
// error rather than a silent success.
type Mailer interface {
	// SendVerificationCode delivers an account-verification code.
	SendVerificationCode(ctx context.Context, address, name, code string) error

	// SendPasswordResetCode delivers a password-reset code.
	SendPasswordResetCode(ctx context.Context, address, name, code string) error
}
