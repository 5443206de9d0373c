package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetByID")

	start := time.Now()
	var user model.User
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)

	if result.Error != nil {
		logger.DebugWithContext(ctx, "Failed to get user by ID").
			Uint("user_id", id).
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetByEmail")

	var user model.User
	result := r.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}

	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "Create")

	start := time.Now()
	result := r.db.WithContext(ctx).Create(user)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.InfoWithContext(ctx, "User created").
		Uint("user_id", user.ID).
		Duration(time.Since(start)).
		Log()

	return nil
}

// UpdatePassword updates the user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hashedPassword string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdatePassword")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("password", hashedPassword)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update user password").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// UpdateLastLogin updates the last login timestamp
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateLastLogin")

	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("last_login", time.Now()).Error
}

// SetActive flips the account's active flag. Deactivation is terminal for
// login but the row is never deleted.
func (r *UserRepository) SetActive(ctx context.Context, id uint, active bool) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "SetActive")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "User active flag updated").
		Uint("user_id", id).
		Bool("active", active).
		Log()

	return nil
}

// SetVerificationCode stores a fresh account-verification code for a channel.
func (r *UserRepository) SetVerificationCode(ctx context.Context, id uint, channel string, code string, expiresAt time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "SetVerificationCode")

	updates := map[string]interface{}{}
	switch channel {
	case "email":
		updates["email_code"] = code
		updates["email_code_expires_at"] = expiresAt
	case "phone":
		updates["phone_code"] = code
		updates["phone_code_expires_at"] = expiresAt
	}

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkVerified flips the channel's verified flag and clears the code slot.
func (r *UserRepository) MarkVerified(ctx context.Context, id uint, channel string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "MarkVerified")

	updates := map[string]interface{}{}
	switch channel {
	case "email":
		updates["email_verified"] = true
		updates["email_code"] = ""
		updates["email_code_expires_at"] = nil
	case "phone":
		updates["phone_verified"] = true
		updates["phone_code"] = ""
		updates["phone_code_expires_at"] = nil
	}

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "User channel verified").
		Uint("user_id", id).
		String("channel", channel).
		Log()

	return nil
}

// SetResetCode stores a fresh password-reset code and stamps the shared
// last-request timestamp used for resend throttling.
func (r *UserRepository) SetResetCode(ctx context.Context, id uint, code string, expiresAt, requestedAt time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "SetResetCode")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"reset_code":            code,
		"reset_code_expires_at": expiresAt,
		"reset_code_used":       false,
		"last_reset_request_at": requestedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ConsumeResetCode marks the reset code used and clears the slot.
func (r *UserRepository) ConsumeResetCode(ctx context.Context, id uint) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "ConsumeResetCode")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"reset_code":            "",
		"reset_code_expires_at": nil,
		"reset_code_used":       true,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
