package service

import (
	"context"
	"time"

	"github.com/venuebook/backend/internal/model"
)

// Store interfaces kept narrow so unit tests can swap in-memory fakes for
// the gorm-backed repositories.

type UserStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id uint, hashedPassword string) error
	UpdateLastLogin(ctx context.Context, id uint) error
	SetActive(ctx context.Context, id uint, active bool) error
	SetVerificationCode(ctx context.Context, id uint, channel string, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id uint, channel string) error
	SetResetCode(ctx context.Context, id uint, code string, expiresAt, requestedAt time.Time) error
	ConsumeResetCode(ctx context.Context, id uint) error
}

type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	FindUsable(ctx context.Context, refreshToken string) (*model.Session, error)
	Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time, deviceName, deviceType, userAgent, ipAddress string) (*model.Session, error)
	Deactivate(ctx context.Context, refreshToken string) (int64, error)
	DeactivateByID(ctx context.Context, userID, sessionID uint) (int64, error)
	DeactivateAllForUser(ctx context.Context, userID uint) (int64, error)
	HasActiveSession(ctx context.Context, userID uint) (bool, error)
	ListForUser(ctx context.Context, userID uint) ([]model.Session, error)
}

type VenueStore interface {
	GetByID(ctx context.Context, id uint) (*model.Venue, error)
	SetRequiresSubUserSetup(ctx context.Context, id uint, requires bool) error
}

type TokenBlacklist interface {
	Blacklist(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

type SubUserStore interface {
	Create(ctx context.Context, subUser *model.VenueSubUser) error
	GetByID(ctx context.Context, id uint) (*model.VenueSubUser, error)
	FindByUsername(ctx context.Context, venueID uint, username string) (*model.VenueSubUser, error)
	CountForVenue(ctx context.Context, venueID uint) (int64, error)
	ListForVenue(ctx context.Context, venueID uint) ([]model.VenueSubUser, error)
	Updates(ctx context.Context, id uint, updates map[string]interface{}) error
	UpdateLastLogin(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
}

type SubUserSessionStore interface {
	Create(ctx context.Context, session *model.SubUserSession) error
	DeactivateAllForSubUser(ctx context.Context, subUserID uint) (int64, error)
	HasActiveSession(ctx context.Context, subUserID uint) (bool, error)
}

type AuditStore interface {
	Record(ctx context.Context, venueID, actorID uint, actorType, action string, details map[string]interface{}) error
}

// TxStores bundles the stores rebound to one database transaction. Writes
// made through them commit or roll back together.
type TxStores struct {
	SubUsers SubUserStore
	Sessions SubUserSessionStore
	Venues   VenueStore
	Audit    AuditStore
}

// TxRunner executes fn inside a transaction. An error from fn rolls the
// whole transaction back.
type TxRunner func(ctx context.Context, fn func(stores TxStores) error) error
