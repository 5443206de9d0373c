package database

import (
	"fmt"

	"gorm.io/gorm"
)

// OptimizedIndexes creates partial indexes the hot auth paths rely on.
// Safe to run repeatedly.
func OptimizedIndexes(db *gorm.DB) error {
	indexes := []string{
		// Refresh lookup: active, unexpired sessions by token
		"CREATE INDEX IF NOT EXISTS idx_sessions_active_token ON sessions(refresh_token) WHERE active = true;",

		// Per-user session listing and revoke-all
		"CREATE INDEX IF NOT EXISTS idx_sessions_user_active ON sessions(user_id, active);",

		// Expired-session sweep
		"CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(refresh_token_expires_at) WHERE active = false;",

		// Sub-user login by venue + lowercased username
		"CREATE INDEX IF NOT EXISTS idx_sub_users_venue_active ON venue_sub_users(venue_id, active);",

		// Sub-user session revocation
		"CREATE INDEX IF NOT EXISTS idx_sub_user_sessions_owner ON sub_user_sessions(sub_user_id, active);",
	}

	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
