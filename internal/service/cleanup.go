package service

import (
	"context"
	"time"

	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

// SessionSweeper interfaces cover only the hard-delete paths used by the
// background sweep.
type ExpiredSessionStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService periodically hard-deletes session rows whose refresh
// tokens expired. Revoked-but-unexpired rows are kept for the device list;
// expired rows carry no information worth the table bloat.
type CleanupService struct {
	sessions        ExpiredSessionStore
	subUserSessions ExpiredSessionStore
	interval        time.Duration
}

func NewCleanupService(sessions, subUserSessions ExpiredSessionStore, interval time.Duration) *CleanupService {
	return &CleanupService{
		sessions:        sessions,
		subUserSessions: subUserSessions,
		interval:        interval,
	}
}

// Run sweeps once immediately and then on every tick until the context is
// cancelled. Intended to be launched as a goroutine from main.
func (s *CleanupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.InfoWithContext(ctx, "Session sweeper stopped").Log()
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes expired sessions from both session tables. Errors are
// logged, not returned: a failed sweep retries at the next tick.
func (s *CleanupService) Sweep(ctx context.Context) {
	ctx = ctxutil.WithOperation(ctx, "cleanup", "Sweep")
	now := time.Now()

	users, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to sweep user sessions").
			Err(err).
			Log()
	}

	subUsers, err := s.subUserSessions.DeleteExpired(ctx, now)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to sweep sub-user sessions").
			Err(err).
			Log()
	}

	if users > 0 || subUsers > 0 {
		logger.InfoWithContext(ctx, "Expired sessions swept").
			Int64("user_sessions", users).
			Int64("sub_user_sessions", subUsers).
			Log()
	}
}
