package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type SubUserRepository struct {
	db *gorm.DB
}

func NewSubUserRepository(db *gorm.DB) *SubUserRepository {
	return &SubUserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SubUserRepository) WithTx(tx *gorm.DB) *SubUserRepository {
	return &SubUserRepository{db: tx}
}

func (r *SubUserRepository) Create(ctx context.Context, subUser *model.VenueSubUser) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "CreateSubUser")

	subUser.UsernameLower = strings.ToLower(subUser.Username)

	result := r.db.WithContext(ctx).Create(subUser)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create sub-user").
			Uint("venue_id", subUser.VenueID).
			String("username", subUser.Username).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.InfoWithContext(ctx, "Sub-user created").
		Uint("sub_user_id", subUser.ID).
		Uint("venue_id", subUser.VenueID).
		Log()

	return nil
}

func (r *SubUserRepository) GetByID(ctx context.Context, id uint) (*model.VenueSubUser, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetSubUserByID")

	var subUser model.VenueSubUser
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&subUser)
	if result.Error != nil {
		return nil, result.Error
	}

	return &subUser, nil
}

// FindByUsername looks up a sub-user by venue and username. The lookup is
// case-insensitive; usernames are unique per venue on their lowercased form.
func (r *SubUserRepository) FindByUsername(ctx context.Context, venueID uint, username string) (*model.VenueSubUser, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "FindSubUserByUsername")

	var subUser model.VenueSubUser
	result := r.db.WithContext(ctx).
		Where("venue_id = ? AND username_lower = ?", venueID, strings.ToLower(username)).
		First(&subUser)
	if result.Error != nil {
		return nil, result.Error
	}

	return &subUser, nil
}

// CountForVenue counts all sub-users of a venue, active or not. The
// first-admin gate requires a count of zero.
func (r *SubUserRepository) CountForVenue(ctx context.Context, venueID uint) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "CountSubUsers")

	var count int64
	err := r.db.WithContext(ctx).Model(&model.VenueSubUser{}).
		Where("venue_id = ?", venueID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *SubUserRepository) ListForVenue(ctx context.Context, venueID uint) ([]model.VenueSubUser, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "ListSubUsers")

	var subUsers []model.VenueSubUser
	err := r.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Order("created_at ASC").
		Find(&subUsers).Error
	if err != nil {
		return nil, err
	}

	return subUsers, nil
}

// Updates applies a partial update to a sub-user row.
func (r *SubUserRepository) Updates(ctx context.Context, id uint, updates map[string]interface{}) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateSubUser")

	result := r.db.WithContext(ctx).Model(&model.VenueSubUser{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update sub-user").
			Uint("sub_user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *SubUserRepository) UpdateLastLogin(ctx context.Context, id uint) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateSubUserLastLogin")

	return r.db.WithContext(ctx).Model(&model.VenueSubUser{}).Where("id = ?", id).
		Update("last_login", time.Now()).Error
}

// Delete hard-deletes a sub-user row. Always called inside a transaction
// together with session termination and the audit write.
func (r *SubUserRepository) Delete(ctx context.Context, id uint) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeleteSubUser")

	result := r.db.WithContext(ctx).Unscoped().Delete(&model.VenueSubUser{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
