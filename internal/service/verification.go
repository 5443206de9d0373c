package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/venuebook/backend/config"
	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/model"
	"github.com/venuebook/backend/pkg/circuit"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
	"github.com/venuebook/backend/pkg/mailer"
	"github.com/venuebook/backend/pkg/sms"
)

// DeliveryBreakers holds one circuit breaker per outbound code channel, so
// a failing email provider fails fast without taking SMS delivery with it.
type DeliveryBreakers struct {
	Email *circuit.Breaker
	SMS   *circuit.Breaker
}

func NewDeliveryBreakers(log *zap.Logger) *DeliveryBreakers {
	cfg := circuit.DefaultConfig()
	return &DeliveryBreakers{
		Email: circuit.NewBreaker("email", cfg, log),
		SMS:   circuit.NewBreaker("sms", cfg, log),
	}
}

// VerificationService issues and checks the 6-digit codes used for account
// verification and password reset. Account-verification codes live in a
// per-channel slot on the user row; the password-reset slot is shared
// across channels and single-use.
type VerificationService struct {
	userRepo    UserStore
	sessionRepo SessionStore
	mailer      mailer.Mailer
	smsSender   sms.Sender
	breakers    *DeliveryBreakers
	cfg         config.AuthConfig
}

func NewVerificationService(
	userRepo UserStore,
	sessionRepo SessionStore,
	m mailer.Mailer,
	smsSender sms.Sender,
	breakers *DeliveryBreakers,
	cfg config.AuthConfig,
) *VerificationService {
	if breakers == nil {
		breakers = NewDeliveryBreakers(nil)
	}
	return &VerificationService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		mailer:      m,
		smsSender:   smsSender,
		breakers:    breakers,
		cfg:         cfg,
	}
}

// SendVerificationCode generates, stores and dispatches a code for the
// given purpose over the given channel.
//
// Resend throttling differs per purpose. Account verification reuses the
// code slot's own expiry: a resend is refused while the previous code still
// has more than the resend-grace window of lifetime left, so a client gets
// at most one fresh code every TTL minus grace. Password reset uses a plain
// fixed interval since the last request, whichever channel it went to.
func (s *VerificationService) SendVerificationCode(ctx context.Context, userID uint, req *dto.SendVerificationCodeRequest) error {
	ctx = ctxutil.WithOperation(ctx, "verification", "SendVerificationCode")

	if !req.Method.Valid() || !req.Purpose.Valid() {
		return apperrors.ErrInvalidInput
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	switch req.Purpose {
	case dto.PurposeAccountVerification:
		return s.sendAccountCode(ctx, user, req.Method)
	case dto.PurposePasswordReset:
		return s.sendResetCode(ctx, user, req.Method)
	default:
		return apperrors.ErrInvalidInput
	}
}

// ForgotPassword starts a password reset for an email address without
// requiring authentication. Unknown addresses report success so the
// endpoint cannot be used to probe which accounts exist.
func (s *VerificationService) ForgotPassword(ctx context.Context, email string, method dto.VerificationMethod) error {
	ctx = ctxutil.WithOperation(ctx, "verification", "ForgotPassword")

	if !method.Valid() {
		return apperrors.ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.InfoWithContext(ctx, "Password reset requested for unknown email").Log()
			return nil
		}
		return err
	}

	return s.sendResetCode(ctx, user, method)
}

func (s *VerificationService) sendAccountCode(ctx context.Context, user *model.User, method dto.VerificationMethod) error {
	channel, verified, expiresAt := accountSlot(user, method)
	if verified {
		logger.InfoWithContext(ctx, "Verification code requested for verified channel").
			Uint("user_id", user.ID).
			String("channel", channel).
			Log()
		return nil
	}

	// Refuse a resend while the outstanding code has more than the grace
	// window of lifetime remaining.
	if expiresAt != nil {
		remaining := time.Until(*expiresAt)
		if remaining > s.cfg.VerificationResend {
			wait := remaining - s.cfg.VerificationResend
			logger.WarnWithContext(ctx, "Verification code resend throttled").
				Uint("user_id", user.ID).
				String("channel", channel).
				Duration(wait).
				Log()
			return apperrors.NewRateLimitError(wait)
		}
	}

	code, err := GenerateVerificationCode()
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.userRepo.SetVerificationCode(ctx, user.ID, channel, code, time.Now().Add(s.cfg.VerificationCodeTTL)); err != nil {
		return err
	}

	if err := s.dispatch(ctx, user, method, code, false); err != nil {
		logger.ErrorWithContext(ctx, "Failed to send verification code").
			Uint("user_id", user.ID).
			String("channel", channel).
			Err(err).
			Log()
		return apperrors.WrapError(apperrors.ErrSendFailed, err)
	}

	logger.InfoWithContext(ctx, "Verification code sent").
		Uint("user_id", user.ID).
		String("channel", channel).
		Log()

	return nil
}

func (s *VerificationService) sendResetCode(ctx context.Context, user *model.User, method dto.VerificationMethod) error {
	if user.LastResetRequestAt != nil {
		elapsed := time.Since(*user.LastResetRequestAt)
		if elapsed < s.cfg.ResetResendInterval {
			wait := s.cfg.ResetResendInterval - elapsed
			logger.WarnWithContext(ctx, "Password reset resend throttled").
				Uint("user_id", user.ID).
				Duration(wait).
				Log()
			return apperrors.NewRateLimitError(wait)
		}
	}

	code, err := GenerateVerificationCode()
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	now := time.Now()
	if err := s.userRepo.SetResetCode(ctx, user.ID, code, now.Add(s.cfg.ResetCodeTTL), now); err != nil {
		return err
	}

	if err := s.dispatch(ctx, user, method, code, true); err != nil {
		logger.ErrorWithContext(ctx, "Failed to send password reset code").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return apperrors.WrapError(apperrors.ErrSendFailed, err)
	}

	logger.InfoWithContext(ctx, "Password reset code sent").
		Uint("user_id", user.ID).
		String("method", string(method)).
		Log()

	return nil
}

// dispatch hands the code to the channel's provider behind its circuit
// breaker. An open breaker surfaces as a provider failure without touching
// the provider at all.
func (s *VerificationService) dispatch(ctx context.Context, user *model.User, method dto.VerificationMethod, code string, reset bool) error {
	switch method {
	case dto.MethodEmail:
		return s.breakers.Email.Execute(func() error {
			if reset {
				return s.mailer.SendPasswordResetCode(ctx, user.Email, user.FirstName, code)
			}
			return s.mailer.SendVerificationCode(ctx, user.Email, user.FirstName, code)
		})
	case dto.MethodPhone:
		if user.Phone == "" {
			return apperrors.ErrInvalidInput
		}
		return s.breakers.SMS.Execute(func() error {
			return s.smsSender.SendCode(ctx, sms.DigitsOnly(user.Phone), code)
		})
	default:
		return apperrors.ErrInvalidInput
	}
}

// VerifyAccount checks a submitted account-verification code against the
// channel's slot. The match is exact and the code must be unexpired; a
// channel that is already verified short-circuits to success so retried
// requests stay idempotent.
func (s *VerificationService) VerifyAccount(ctx context.Context, userID uint, req *dto.VerifyAccountRequest) error {
	ctx = ctxutil.WithOperation(ctx, "verification", "VerifyAccount")

	if !req.Method.Valid() {
		return apperrors.ErrInvalidInput
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	channel, verified, _ := accountSlot(user, req.Method)
	if verified {
		return nil
	}

	if !accountCodeMatches(user, req.Method, req.Code, time.Now()) {
		logger.WarnWithContext(ctx, "Verification code rejected").
			Uint("user_id", user.ID).
			String("channel", channel).
			Log()
		return apperrors.ErrInvalidCode
	}

	if err := s.userRepo.MarkVerified(ctx, user.ID, channel); err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Account channel verified").
		Uint("user_id", user.ID).
		String("channel", channel).
		Log()

	return nil
}

// ResetPassword completes the reset flow: the code must match the stored
// slot, be unexpired and unused. On success the password is replaced, the
// code consumed and every session revoked, so stolen refresh tokens die
// with the old password. Unknown emails and bad codes share one error.
func (s *VerificationService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	ctx = ctxutil.WithOperation(ctx, "verification", "ResetPassword")

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidCode
		}
		return err
	}

	if !resetCodeMatches(user, req.Code, time.Now()) {
		logger.WarnWithContext(ctx, "Password reset code rejected").
			Uint("user_id", user.ID).
			Log()
		return apperrors.ErrInvalidCode
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return err
	}
	if err := s.userRepo.ConsumeResetCode(ctx, user.ID); err != nil {
		return err
	}

	revoked, err := s.sessionRepo.DeactivateAllForUser(ctx, user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke sessions after password reset").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "Password reset completed").
		Uint("user_id", user.ID).
		Int64("sessions_revoked", revoked).
		Log()

	return nil
}

// accountSlot maps a channel to its column triple on the user row.
func accountSlot(user *model.User, method dto.VerificationMethod) (channel string, verified bool, expiresAt *time.Time) {
	if method == dto.MethodPhone {
		return "phone", user.PhoneVerified, user.PhoneCodeExpiresAt
	}
	return "email", user.EmailVerified, user.EmailCodeExpiresAt
}

func accountCodeMatches(user *model.User, method dto.VerificationMethod, code string, now time.Time) bool {
	var stored string
	var expiresAt *time.Time
	if method == dto.MethodPhone {
		stored, expiresAt = user.PhoneCode, user.PhoneCodeExpiresAt
	} else {
		stored, expiresAt = user.EmailCode, user.EmailCodeExpiresAt
	}
	if stored == "" || expiresAt == nil || !expiresAt.After(now) {
		return false
	}
	return stored == code
}

func resetCodeMatches(user *model.User, code string, now time.Time) bool {
	if user.ResetCode == "" || user.ResetCodeUsed {
		return false
	}
	if user.ResetCodeExpiresAt == nil || !user.ResetCodeExpiresAt.After(now) {
		return false
	}
	return user.ResetCode == code
}
