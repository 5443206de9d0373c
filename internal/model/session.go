package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/permission"
)

// Session binds a refresh token to a user and device. Users may hold many
// concurrent sessions (multi-device). A session is usable for refresh only
// while active and before the refresh token expiry; logout and revocation
// deactivate the row, they never delete it.
type Session struct {
	gorm.Model
	UserID              uint      `gorm:"column:user_id;index;not null"`
	RefreshToken        string    `gorm:"column:refresh_token;uniqueIndex;not null"`
	RefreshTokenExpires time.Time `gorm:"column:refresh_token_expires_at;not null"`
	Active              bool      `gorm:"column:active;default:true;not null"`
	DeviceName          string    `gorm:"column:device_name"`
	DeviceType          string    `gorm:"column:device_type"`
	UserAgent           string    `gorm:"column:user_agent"`
	IPAddress           string    `gorm:"column:ip_address"`
}

// Usable reports whether the session can still be exchanged for new tokens.
func (s *Session) Usable(now time.Time) bool {
	return s.Active && s.RefreshTokenExpires.After(now)
}

// SubUserSession is the sub-user analogue of Session, scoped to a venue and
// carrying the permission bitmask snapshotted at issuance time. Validation
// reads the snapshot from the token claims, not from this row.
type SubUserSession struct {
	gorm.Model
	SubUserID           uint                  `gorm:"column:sub_user_id;index;not null"`
	VenueID             uint                  `gorm:"column:venue_id;index;not null"`
	Permissions         permission.Permission `gorm:"column:permissions;not null"`
	RefreshToken        string                `gorm:"column:refresh_token;uniqueIndex;not null"`
	RefreshTokenExpires time.Time             `gorm:"column:refresh_token_expires_at;not null"`
	Active              bool                  `gorm:"column:active;default:true;not null"`
	DeviceName          string                `gorm:"column:device_name"`
	UserAgent           string                `gorm:"column:user_agent"`
	IPAddress           string                `gorm:"column:ip_address"`
}

func (s *SubUserSession) Usable(now time.Time) bool {
	return s.Active && s.RefreshTokenExpires.After(now)
}
