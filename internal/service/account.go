package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/model"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

// AccountService covers self-service account commands for primary users:
// password change and deactivation. Both re-verify the current password
// before mutating anything.
type AccountService struct {
	userRepo    UserStore
	sessionRepo SessionStore
	blacklist   TokenBlacklist
}

func NewAccountService(userRepo UserStore, sessionRepo SessionStore, blacklist TokenBlacklist) *AccountService {
	return &AccountService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		blacklist:   blacklist,
	}
}

// ChangePassword replaces the user's password after verifying the current
// one. When the request asks for it, every other session is revoked in the
// same call so the new password invalidates stolen refresh tokens.
func (s *AccountService) ChangePassword(ctx context.Context, userID uint, req *dto.ChangePasswordRequest, accessClaims *Claims) error {
	ctx = ctxutil.WithOperation(ctx, "account", "ChangePassword")

	if req.NewPassword != req.ConfirmPassword {
		return apperrors.ErrPasswordMismatch
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		logger.WarnWithContext(ctx, "Password change with wrong current password").
			Uint("user_id", userID).
			Log()
		return apperrors.ErrIncorrectPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}

	if req.LogoutAllDevices {
		revoked, err := s.sessionRepo.DeactivateAllForUser(ctx, userID)
		if err != nil {
			logger.ErrorWithContext(ctx, "Failed to revoke sessions after password change").
				Uint("user_id", userID).
				Err(err).
				Log()
			return err
		}
		if accessClaims != nil && accessClaims.ExpiresAt != nil {
			if err := s.blacklist.Blacklist(ctx, accessClaims.ID, accessClaims.ExpiresAt.Time); err != nil {
				return apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
			}
		}
		logger.InfoWithContext(ctx, "Password changed, all devices logged out").
			Uint("user_id", userID).
			Int64("sessions_revoked", revoked).
			Log()
		return nil
	}

	logger.InfoWithContext(ctx, "Password changed").
		Uint("user_id", userID).
		Log()

	return nil
}

// DeactivateAccount disables the account after a password confirmation.
// Every session is revoked and the caller's access token blacklisted, so
// the account goes dark immediately rather than at token expiry.
func (s *AccountService) DeactivateAccount(ctx context.Context, userID uint, req *dto.DeactivateAccountRequest, accessClaims *Claims) error {
	ctx = ctxutil.WithOperation(ctx, "account", "DeactivateAccount")

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.WarnWithContext(ctx, "Deactivation with wrong password").
			Uint("user_id", userID).
			Log()
		return apperrors.ErrIncorrectPassword
	}

	if err := s.userRepo.SetActive(ctx, userID, false); err != nil {
		return err
	}

	revoked, err := s.sessionRepo.DeactivateAllForUser(ctx, userID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke sessions on deactivation").
			Uint("user_id", userID).
			Err(err).
			Log()
		return err
	}

	if accessClaims != nil && accessClaims.ExpiresAt != nil {
		if err := s.blacklist.Blacklist(ctx, accessClaims.ID, accessClaims.ExpiresAt.Time); err != nil {
			return apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
		}
	}

	logger.InfoWithContext(ctx, "Account deactivated").
		Uint("user_id", userID).
		Int64("sessions_revoked", revoked).
		Log()

	return nil
}

func (s *AccountService) loadUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
