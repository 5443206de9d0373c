package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/permission"
)

// VenueSubUser is a venue-scoped operator account, distinct from the primary
// owner account. Username uniqueness is case-insensitive within a venue:
// UsernameLower carries the canonical value and shares the unique index
// with VenueID.
type VenueSubUser struct {
	gorm.Model
	VenueID            uint                  `gorm:"column:venue_id;not null;uniqueIndex:idx_sub_users_venue_username"`
	Username           string                `gorm:"column:username;not null"`
	UsernameLower      string                `gorm:"column:username_lower;not null;uniqueIndex:idx_sub_users_venue_username"`
	Password           string                `gorm:"column:password;not null"`
	Role               permission.Role       `gorm:"column:role;not null"`
	Permissions        permission.Permission `gorm:"column:permissions;not null"`
	Active             bool                  `gorm:"column:active;default:true;not null"`
	FounderAdmin       bool                  `gorm:"column:founder_admin;default:false;not null"`
	MustChangePassword bool                  `gorm:"column:must_change_password;default:false;not null"`
	LastLogin          *time.Time            `gorm:"column:last_login"`
}
