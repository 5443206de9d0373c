package repository

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Record writes one audit entry. details is marshalled to the JSON column.
func (r *AuditRepository) Record(ctx context.Context, venueID, actorID uint, actorType, action string, details map[string]interface{}) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "RecordAudit")

	var payload datatypes.JSON
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(raw)
	}

	entry := model.AuditLog{
		VenueID:   venueID,
		ActorID:   actorID,
		ActorType: actorType,
		Action:    action,
		Details:   payload,
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to record audit entry").
			Uint("venue_id", venueID).
			String("action", action).
			Err(err).
			Log()
		return err
	}

	return nil
}
