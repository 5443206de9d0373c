package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "CreateSession")

	result := r.db.WithContext(ctx).Create(session)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create session").
			Uint("user_id", session.UserID).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.DebugWithContext(ctx, "Session created").
		Uint("session_id", session.ID).
		Uint("user_id", session.UserID).
		Log()

	return nil
}

// FindUsable looks up a session by refresh token that is still active and
// unexpired. Callers must not distinguish missing from expired.
func (r *SessionRepository) FindUsable(ctx context.Context, refreshToken string) (*model.Session, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "FindUsableSession")

	var session model.Session
	result := r.db.WithContext(ctx).
		Where("refresh_token = ? AND active = ? AND refresh_token_expires_at > ?",
			refreshToken, true, time.Now()).
		First(&session)
	if result.Error != nil {
		return nil, result.Error
	}

	return &session, nil
}

// Rotate atomically swaps the refresh token on a still-usable session and
// refreshes device metadata. The conditional WHERE makes concurrent refresh
// attempts with the same old token race to a single winner: the loser sees
// zero rows affected and gets gorm.ErrRecordNotFound.
func (r *SessionRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time, deviceName, deviceType, userAgent, ipAddress string) (*model.Session, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "RotateSession")

	updates := map[string]interface{}{
		"refresh_token":            newToken,
		"refresh_token_expires_at": expiresAt,
	}
	if deviceName != "" {
		updates["device_name"] = deviceName
	}
	if deviceType != "" {
		updates["device_type"] = deviceType
	}
	if userAgent != "" {
		updates["user_agent"] = userAgent
	}
	if ipAddress != "" {
		updates["ip_address"] = ipAddress
	}

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("refresh_token = ? AND active = ? AND refresh_token_expires_at > ?",
			oldToken, true, time.Now()).
		Updates(updates)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to rotate session").
			Err(result.Error).
			Log()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Token already rotated, revoked, or never existed
		return nil, gorm.ErrRecordNotFound
	}

	var session model.Session
	if err := r.db.WithContext(ctx).Where("refresh_token = ?", newToken).First(&session).Error; err != nil {
		return nil, err
	}

	return &session, nil
}

// Deactivate revokes a single session by refresh token. Returns the number
// of rows touched so callers can decide between no-op success and not-found.
func (r *SessionRepository) Deactivate(ctx context.Context, refreshToken string) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeactivateSession")

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("refresh_token = ? AND active = ?", refreshToken, true).
		Update("active", false)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// DeactivateByID revokes a session by id, scoped to its owner so one user
// cannot revoke another's session.
func (r *SessionRepository) DeactivateByID(ctx context.Context, userID, sessionID uint) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeactivateSessionByID")

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND user_id = ? AND active = ?", sessionID, userID, true).
		Update("active", false)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// DeactivateAllForUser revokes every active session belonging to a user.
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID uint) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeactivateAllSessions")

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id = ? AND active = ?", userID, true).
		Update("active", false)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to deactivate user sessions").
			Uint("user_id", userID).
			Err(result.Error).
			Log()
		return 0, result.Error
	}

	logger.InfoWithContext(ctx, "User sessions deactivated").
		Uint("user_id", userID).
		Int64("count", result.RowsAffected).
		Log()

	return result.RowsAffected, nil
}

// HasActiveSession reports whether the user holds at least one active,
// unexpired session. Used by token validation enrichment.
func (r *SessionRepository) HasActiveSession(ctx context.Context, userID uint) (bool, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "HasActiveSession")

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id = ? AND active = ? AND refresh_token_expires_at > ?",
			userID, true, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// ListForUser returns all sessions for a user, newest first.
func (r *SessionRepository) ListForUser(ctx context.Context, userID uint) ([]model.Session, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "ListSessions")

	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// DeleteExpired hard-deletes sessions whose refresh token expired before
// the cutoff. Idempotent; only rows already past expiry are touched.
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeleteExpiredSessions")

	result := r.db.WithContext(ctx).
		Where("refresh_token_expires_at < ?", cutoff).
		Delete(&model.Session{})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		logger.InfoWithContext(ctx, "Expired sessions deleted").
			Int64("count", result.RowsAffected).
			Log()
	}

	return result.RowsAffected, nil
}
