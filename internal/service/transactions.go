package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/repository"
)

// NewGormTxRunner builds the production TxRunner: each invocation opens a
// database transaction and hands the callback repositories bound to it.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return func(ctx context.Context, fn func(stores TxStores) error) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(TxStores{
				SubUsers: repository.NewSubUserRepository(tx),
				Sessions: repository.NewSubUserSessionRepository(tx),
				Venues:   repository.NewVenueRepository(tx),
				Audit:    repository.NewAuditRepository(tx),
			})
		})
	}
}
