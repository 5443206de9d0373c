package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor types recorded on audit entries.
const (
	ActorUser    = "user"
	ActorSubUser = "sub_user"
)

// AuditLog records security-relevant sub-user mutations. Write-only from
// the core's perspective; always written inside the same transaction as
// the mutation it describes.
type AuditLog struct {
	gorm.Model
	VenueID   uint           `gorm:"column:venue_id;index;not null"`
	ActorID   uint           `gorm:"column:actor_id;not null"`
	ActorType string         `gorm:"column:actor_type;not null"` // "user" or "sub_user"
	Action    string         `gorm:"column:action;not null"`
	Details   datatypes.JSON `gorm:"column:details"`
}
