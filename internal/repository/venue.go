package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
	ctxutil "github.com/venuebook/backend/pkg/context"
)

type VenueRepository struct {
	db *gorm.DB
}

func NewVenueRepository(db *gorm.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *VenueRepository) WithTx(tx *gorm.DB) *VenueRepository {
	return &VenueRepository{db: tx}
}

func (r *VenueRepository) GetByID(ctx context.Context, id uint) (*model.Venue, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetVenueByID")

	var venue model.Venue
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&venue)
	if result.Error != nil {
		return nil, result.Error
	}

	return &venue, nil
}

// SetRequiresSubUserSetup flips the bootstrap flag once the first admin
// has been provisioned.
func (r *VenueRepository) SetRequiresSubUserSetup(ctx context.Context, id uint, requires bool) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "SetRequiresSubUserSetup")

	result := r.db.WithContext(ctx).Model(&model.Venue{}).Where("id = ?", id).
		Update("requires_sub_user_setup", requires)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
