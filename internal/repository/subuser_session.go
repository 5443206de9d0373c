package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type SubUserSessionRepository struct {
	db *gorm.DB
}

func NewSubUserSessionRepository(db *gorm.DB) *SubUserSessionRepository {
	return &SubUserSessionRepository{db: db}
}

func (r *SubUserSessionRepository) Create(ctx context.Context, session *model.SubUserSession) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "CreateSubUserSession")

	result := r.db.WithContext(ctx).Create(session)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create sub-user session").
			Uint("sub_user_id", session.SubUserID).
			Err(result.Error).
			Log()
		return result.Error
	}

	return nil
}

// DeactivateAllForSubUser revokes every active session of a sub-user.
func (r *SubUserSessionRepository) DeactivateAllForSubUser(ctx context.Context, subUserID uint) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeactivateSubUserSessions")

	result := r.db.WithContext(ctx).Model(&model.SubUserSession{}).
		Where("sub_user_id = ? AND active = ?", subUserID, true).
		Update("active", false)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// HasActiveSession reports whether the sub-user holds a live session.
func (r *SubUserSessionRepository) HasActiveSession(ctx context.Context, subUserID uint) (bool, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "HasActiveSubUserSession")

	var count int64
	err := r.db.WithContext(ctx).Model(&model.SubUserSession{}).
		Where("sub_user_id = ? AND active = ? AND refresh_token_expires_at > ?",
			subUserID, true, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DeleteExpired hard-deletes sub-user sessions past expiry.
func (r *SubUserSessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeleteExpiredSubUserSessions")

	result := r.db.WithContext(ctx).
		Where("refresh_token_expires_at < ?", cutoff).
		Delete(&model.SubUserSession{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SubUserSessionRepository) WithTx(tx *gorm.DB) *SubUserSessionRepository {
	return &SubUserSessionRepository{db: tx}
}
