package model

import (
	"time"

	"gorm.io/gorm"
)

// User is a primary account (venue owner or customer). Verification codes
// live on the row rather than in a standalone table: one slot per channel
// for account verification plus a shared password-reset slot.
type User struct {
	gorm.Model
	FirstName     string `gorm:"column:first_name;not null"`
	LastName      string `gorm:"column:last_name;not null"`
	Email         string `gorm:"column:email;unique;not null"`
	Phone         string `gorm:"column:phone"`
	Password      string `gorm:"column:password;not null"`
	EmailVerified bool   `gorm:"column:email_verified;default:false;not null"`
	PhoneVerified bool   `gorm:"column:phone_verified;default:false;not null"`
	Active        bool   `gorm:"column:active;default:true;not null"`
	VenueID       *uint  `gorm:"column:venue_id;index"`

	LastLogin time.Time `gorm:"column:last_login"`

	// Account-verification code slots, one per channel
	EmailCode          string     `gorm:"column:email_code"`
	EmailCodeExpiresAt *time.Time `gorm:"column:email_code_expires_at"`
	PhoneCode          string     `gorm:"column:phone_code"`
	PhoneCodeExpiresAt *time.Time `gorm:"column:phone_code_expires_at"`

	// Password-reset code slot, shared across channels
	ResetCode          string     `gorm:"column:reset_code"`
	ResetCodeExpiresAt *time.Time `gorm:"column:reset_code_expires_at"`
	ResetCodeUsed      bool       `gorm:"column:reset_code_used;default:false;not null"`
	LastResetRequestAt *time.Time `gorm:"column:last_reset_request_at"`
}
