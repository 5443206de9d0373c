package model

import "gorm.io/gorm"

type Venue struct {
	gorm.Model
	Name            string `gorm:"column:name;not null"`
	Type            string `gorm:"column:type"`
	OwnerID         uint   `gorm:"column:owner_id;index;not null"`
	ProfileComplete bool   `gorm:"column:profile_complete;default:false;not null"`

	// Set at registration, flipped false once the first sub-user admin is
	// provisioned through the one-time bootstrap path.
	RequiresSubUserSetup bool `gorm:"column:requires_sub_user_setup;default:true;not null"`
}
