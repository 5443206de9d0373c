package service

import (
	"context"
	"time"

	"github.com/venuebook/backend/internal/constants"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

// BlacklistStore is the key-value surface the blacklist needs. Satisfied
// by pkg/redis.Client; faked in tests.
type BlacklistStore interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// TokenBlacklistService tracks revoked access-token identifiers (jti) until
// their natural expiry. The store TTL prunes entries automatically, so a
// blacklisted jti never outlives the token it belongs to.
type TokenBlacklistService struct {
	store BlacklistStore
}

func NewTokenBlacklistService(store BlacklistStore) *TokenBlacklistService {
	return &TokenBlacklistService{store: store}
}

// Blacklist records a jti as revoked until the token's natural expiry.
// Already-expired tokens are a no-op.
func (s *TokenBlacklistService) Blacklist(ctx context.Context, jti string, expiresAt time.Time) error {
	ctx = ctxutil.WithOperation(ctx, "service", "Blacklist")

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.store.Set(ctx, constants.KeyBlacklistToken+jti, "1", ttl); err != nil {
		logger.ErrorWithContext(ctx, "Failed to blacklist token").
			String("jti", jti).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "Token blacklisted").
		String("jti", jti).
		Duration(ttl).
		Log()

	return nil
}

// IsTokenBlacklisted checks revocation in O(1) key lookup time.
func (s *TokenBlacklistService) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "IsTokenBlacklisted")

	exists, err := s.store.Exists(ctx, constants.KeyBlacklistToken+jti)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to check token blacklist").
			String("jti", jti).
			Err(err).
			Log()
		return false, err
	}

	return exists, nil
}
