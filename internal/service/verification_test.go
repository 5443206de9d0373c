package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/venuebook/backend/config"
	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/model"
)

type sentMessage struct {
	address string
	code    string
	reset   bool
}

type fakeMailer struct {
	sent []sentMessage
	err  error
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, address, _, code string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{address: address, code: code})
	return nil
}

func (m *fakeMailer) SendPasswordResetCode(_ context.Context, address, _, code string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{address: address, code: code, reset: true})
	return nil
}

type fakeSMSSender struct {
	sent []sentMessage
	err  error
}

func (s *fakeSMSSender) SendCode(_ context.Context, phone, code string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{address: phone, code: code})
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		VerificationCodeTTL: 10 * time.Minute,
		VerificationResend:  8 * time.Minute,
		ResetCodeTTL:        10 * time.Minute,
		ResetResendInterval: 60 * time.Second,
	}
}

type verificationFixture struct {
	svc      *VerificationService
	users    *fakeUserStore
	sessions *fakeSessionStore
	mailer   *fakeMailer
	sms      *fakeSMSSender
}

func newVerificationFixture(t *testing.T, users ...*model.User) *verificationFixture {
	t.Helper()
	f := &verificationFixture{
		users:    newFakeUserStore(users...),
		sessions: newFakeSessionStore(),
		mailer:   &fakeMailer{},
		sms:      &fakeSMSSender{},
	}
	f.svc = NewVerificationService(f.users, f.sessions, f.mailer, f.sms, nil, testAuthConfig())
	return f
}

func unverifiedUser(t *testing.T, id uint, email string) *model.User {
	t.Helper()
	return &model.User{
		Model:     gorm.Model{ID: id},
		FirstName: "Ada",
		Email:     email,
		Phone:     "+62 812-3456-7890",
		Password:  hashPassword(t, "old-pass1"),
		Active:    true,
	}
}

func TestVerificationService_SendAccountCode(t *testing.T) {
	ctx := context.Background()
	sendReq := &dto.SendVerificationCodeRequest{Method: dto.MethodEmail, Purpose: dto.PurposeAccountVerification}

	t.Run("stores and emails the code", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))

		if err := f.svc.SendVerificationCode(ctx, 1, sendReq); err != nil {
			t.Fatalf("SendVerificationCode() error = %v", err)
		}

		user := f.users.users[1]
		if user.EmailCode == "" || len(user.EmailCode) != 6 {
			t.Errorf("EmailCode = %q, want 6 digits", user.EmailCode)
		}
		if user.EmailCodeExpiresAt == nil {
			t.Fatal("expected an expiry on the code slot")
		}
		if ttl := time.Until(*user.EmailCodeExpiresAt); ttl < 9*time.Minute || ttl > 10*time.Minute {
			t.Errorf("code TTL %v, want about 10m", ttl)
		}
		if len(f.mailer.sent) != 1 || f.mailer.sent[0].code != user.EmailCode {
			t.Errorf("mailer.sent = %+v", f.mailer.sent)
		}
	})

	t.Run("sms channel strips phone formatting", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))

		req := &dto.SendVerificationCodeRequest{Method: dto.MethodPhone, Purpose: dto.PurposeAccountVerification}
		if err := f.svc.SendVerificationCode(ctx, 1, req); err != nil {
			t.Fatalf("SendVerificationCode() error = %v", err)
		}
		if len(f.sms.sent) != 1 || f.sms.sent[0].address != "6281234567890" {
			t.Errorf("sms.sent = %+v", f.sms.sent)
		}
		if f.users.users[1].EmailCode != "" {
			t.Error("email slot must stay empty for a phone send")
		}
	})

	t.Run("resend throttled while previous code is fresh", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))

		if err := f.svc.SendVerificationCode(ctx, 1, sendReq); err != nil {
			t.Fatalf("first send error = %v", err)
		}
		first := f.users.users[1].EmailCode

		err := f.svc.SendVerificationCode(ctx, 1, sendReq)
		var rateErr *apperrors.RateLimitError
		if !errors.As(err, &rateErr) {
			t.Fatalf("second send error = %v, want RateLimitError", err)
		}
		// 10m TTL with an 8m grace leaves about 2m of wait.
		if rateErr.RetryAfter <= time.Minute || rateErr.RetryAfter > 2*time.Minute {
			t.Errorf("RetryAfter = %v, want about 2m", rateErr.RetryAfter)
		}
		if f.users.users[1].EmailCode != first {
			t.Error("throttled resend must not replace the code")
		}
	})

	t.Run("resend allowed once inside the grace window", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))
		soon := time.Now().Add(7 * time.Minute)
		f.users.users[1].EmailCode = "111111"
		f.users.users[1].EmailCodeExpiresAt = &soon

		if err := f.svc.SendVerificationCode(ctx, 1, sendReq); err != nil {
			t.Fatalf("SendVerificationCode() error = %v", err)
		}
		if f.users.users[1].EmailCode == "111111" {
			t.Error("expected a fresh code")
		}
	})

	t.Run("verified channel is a no-op", func(t *testing.T) {
		user := unverifiedUser(t, 1, "ada@example.com")
		user.EmailVerified = true
		f := newVerificationFixture(t, user)

		if err := f.svc.SendVerificationCode(ctx, 1, sendReq); err != nil {
			t.Fatalf("SendVerificationCode() error = %v", err)
		}
		if len(f.mailer.sent) != 0 {
			t.Error("no mail expected for a verified channel")
		}
	})

	t.Run("provider failure maps to send failed", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))
		f.mailer.err = errors.New("smtp timeout")

		err := f.svc.SendVerificationCode(ctx, 1, sendReq)
		if !errors.Is(err, apperrors.ErrSendFailed) {
			t.Errorf("SendVerificationCode() error = %v, want ErrSendFailed", err)
		}
	})

	t.Run("open circuit maps to send failed", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))
		f.mailer.err = errors.New("smtp timeout")

		// Trip the email breaker, then restore the provider: sends must
		// still fail fast until the breaker times out.
		for i := 0; i < 6; i++ {
			f.svc.breakers.Email.Record(f.mailer.err)
		}
		f.mailer.err = nil

		err := f.svc.SendVerificationCode(ctx, 1, sendReq)
		if !errors.Is(err, apperrors.ErrSendFailed) {
			t.Errorf("SendVerificationCode() error = %v, want ErrSendFailed", err)
		}
		if len(f.mailer.sent) != 0 {
			t.Error("open breaker must not reach the provider")
		}
	})

	t.Run("invalid method or purpose", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))

		err := f.svc.SendVerificationCode(ctx, 1, &dto.SendVerificationCodeRequest{Method: "Pigeon", Purpose: dto.PurposeAccountVerification})
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("bad method error = %v, want ErrInvalidInput", err)
		}
	})
}

func TestVerificationService_VerifyAccount(t *testing.T) {
	ctx := context.Background()

	withCode := func(t *testing.T, code string, expiresIn time.Duration) *verificationFixture {
		t.Helper()
		user := unverifiedUser(t, 1, "ada@example.com")
		expiry := time.Now().Add(expiresIn)
		user.EmailCode = code
		user.EmailCodeExpiresAt = &expiry
		return newVerificationFixture(t, user)
	}

	t.Run("correct code verifies the channel", func(t *testing.T) {
		f := withCode(t, "123456", 5*time.Minute)

		err := f.svc.VerifyAccount(ctx, 1, &dto.VerifyAccountRequest{Code: "123456", Method: dto.MethodEmail})
		if err != nil {
			t.Fatalf("VerifyAccount() error = %v", err)
		}

		user := f.users.users[1]
		if !user.EmailVerified {
			t.Error("expected EmailVerified true")
		}
		if user.EmailCode != "" || user.EmailCodeExpiresAt != nil {
			t.Error("expected the code slot cleared")
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		f := withCode(t, "123456", 5*time.Minute)

		err := f.svc.VerifyAccount(ctx, 1, &dto.VerifyAccountRequest{Code: "654321", Method: dto.MethodEmail})
		if !errors.Is(err, apperrors.ErrInvalidCode) {
			t.Errorf("VerifyAccount() error = %v, want ErrInvalidCode", err)
		}
		if f.users.users[1].EmailVerified {
			t.Error("channel must stay unverified")
		}
	})

	t.Run("expired code", func(t *testing.T) {
		f := withCode(t, "123456", -time.Minute)

		err := f.svc.VerifyAccount(ctx, 1, &dto.VerifyAccountRequest{Code: "123456", Method: dto.MethodEmail})
		if !errors.Is(err, apperrors.ErrInvalidCode) {
			t.Errorf("VerifyAccount() error = %v, want ErrInvalidCode", err)
		}
	})

	t.Run("empty slot never matches", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))

		err := f.svc.VerifyAccount(ctx, 1, &dto.VerifyAccountRequest{Code: "000000", Method: dto.MethodEmail})
		if !errors.Is(err, apperrors.ErrInvalidCode) {
			t.Errorf("VerifyAccount() error = %v, want ErrInvalidCode", err)
		}
	})

	t.Run("already verified is idempotent", func(t *testing.T) {
		user := unverifiedUser(t, 1, "ada@example.com")
		user.EmailVerified = true
		f := newVerificationFixture(t, user)

		if err := f.svc.VerifyAccount(ctx, 1, &dto.VerifyAccountRequest{Code: "000000", Method: dto.MethodEmail}); err != nil {
			t.Errorf("VerifyAccount() error = %v, want nil", err)
		}
	})
}

func TestVerificationService_ForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("known email gets a reset code", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))

		if err := f.svc.ForgotPassword(ctx, "ada@example.com", dto.MethodEmail); err != nil {
			t.Fatalf("ForgotPassword() error = %v", err)
		}

		user := f.users.users[1]
		if user.ResetCode == "" || user.LastResetRequestAt == nil {
			t.Errorf("reset slot not populated: %+v", user)
		}
		if len(f.mailer.sent) != 1 || !f.mailer.sent[0].reset {
			t.Errorf("mailer.sent = %+v, want one reset mail", f.mailer.sent)
		}
	})

	t.Run("unknown email reports success", func(t *testing.T) {
		f := newVerificationFixture(t)

		if err := f.svc.ForgotPassword(ctx, "nobody@example.com", dto.MethodEmail); err != nil {
			t.Errorf("ForgotPassword() error = %v, want nil", err)
		}
		if len(f.mailer.sent) != 0 {
			t.Error("nothing should be sent for an unknown email")
		}
	})

	t.Run("resend throttled inside the interval", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))

		if err := f.svc.ForgotPassword(ctx, "ada@example.com", dto.MethodEmail); err != nil {
			t.Fatalf("first request error = %v", err)
		}

		err := f.svc.ForgotPassword(ctx, "ada@example.com", dto.MethodPhone)
		var rateErr *apperrors.RateLimitError
		if !errors.As(err, &rateErr) {
			t.Fatalf("second request error = %v, want RateLimitError", err)
		}
		if rateErr.RetryAfter <= 0 || rateErr.RetryAfter > time.Minute {
			t.Errorf("RetryAfter = %v, want under 60s", rateErr.RetryAfter)
		}
	})

	t.Run("resend allowed after the interval", func(t *testing.T) {
		f := newVerificationFixture(t, unverifiedUser(t, 1, "ada@example.com"))
		past := time.Now().Add(-2 * time.Minute)
		f.users.users[1].LastResetRequestAt = &past

		if err := f.svc.ForgotPassword(ctx, "ada@example.com", dto.MethodEmail); err != nil {
			t.Errorf("ForgotPassword() error = %v, want nil", err)
		}
	})
}

func TestVerificationService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	withResetCode := func(t *testing.T, code string, expiresIn time.Duration, used bool) *verificationFixture {
		t.Helper()
		user := unverifiedUser(t, 1, "ada@example.com")
		expiry := time.Now().Add(expiresIn)
		user.ResetCode = code
		user.ResetCodeExpiresAt = &expiry
		user.ResetCodeUsed = used
		return newVerificationFixture(t, user)
	}

	t.Run("success replaces password, consumes code, revokes sessions", func(t *testing.T) {
		f := withResetCode(t, "123456", 5*time.Minute, false)
		f.sessions.sessions["rt"] = &model.Session{
			Model:               gorm.Model{ID: 1},
			UserID:              1,
			RefreshToken:        "rt",
			RefreshTokenExpires: time.Now().Add(time.Hour),
			Active:              true,
		}

		err := f.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{
			Email:       "ada@example.com",
			Code:        "123456",
			NewPassword: "brand-new1",
		})
		if err != nil {
			t.Fatalf("ResetPassword() error = %v", err)
		}

		user := f.users.users[1]
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("brand-new1")); err != nil {
			t.Error("password not replaced")
		}
		if !user.ResetCodeUsed {
			t.Error("expected the reset code consumed")
		}
		if f.sessions.sessions["rt"].Active {
			t.Error("expected every session revoked")
		}
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name    string
			fixture func(t *testing.T) *verificationFixture
			email   string
			code    string
		}{
			{"unknown email", func(t *testing.T) *verificationFixture {
				return withResetCode(t, "123456", 5*time.Minute, false)
			}, "nobody@example.com", "123456"},
			{"wrong code", func(t *testing.T) *verificationFixture {
				return withResetCode(t, "123456", 5*time.Minute, false)
			}, "ada@example.com", "654321"},
			{"expired code", func(t *testing.T) *verificationFixture {
				return withResetCode(t, "123456", -time.Minute, false)
			}, "ada@example.com", "123456"},
			{"already used code", func(t *testing.T) *verificationFixture {
				return withResetCode(t, "123456", 5*time.Minute, true)
			}, "ada@example.com", "123456"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := tt.fixture(t)
				err := f.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{
					Email:       tt.email,
					Code:        tt.code,
					NewPassword: "brand-new1",
				})
				if !errors.Is(err, apperrors.ErrInvalidCode) {
					t.Errorf("ResetPassword() error = %v, want ErrInvalidCode", err)
				}
			})
		}
	})

	t.Run("used code cannot be replayed", func(t *testing.T) {
		f := withResetCode(t, "123456", 5*time.Minute, false)

		req := &dto.ResetPasswordRequest{Email: "ada@example.com", Code: "123456", NewPassword: "brand-new1"}
		if err := f.svc.ResetPassword(ctx, req); err != nil {
			t.Fatalf("first reset error = %v", err)
		}
		if err := f.svc.ResetPassword(ctx, req); !errors.Is(err, apperrors.ErrInvalidCode) {
			t.Errorf("replay error = %v, want ErrInvalidCode", err)
		}
	})
}
