package database

import (
	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
)

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Venue{},
		&model.Session{},
		&model.VenueSubUser{},
		&model.SubUserSession{},
		&model.AuditLog{},
	)
}
