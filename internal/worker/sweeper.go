// Package worker runs background maintenance for the API server.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper is the store surface the sweeper needs.
type SessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// StartSessionSweeper runs a background goroutine that periodically deletes
// expired auth sessions until ctx is done.
func StartSessionSweeper(ctx context.Context, repo SessionSweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				SweepExpiredSessions(ctx, repo, time.Now())
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepExpiredSessions deletes sessions expired at now and returns the count.
func SweepExpiredSessions(ctx context.Context, repo SessionSweeper, now time.Time) int64 {
	deleted, err := repo.DeleteExpiredSessions(ctx, now)
	if err != nil {
		slog.Error("Session sweeper failed to delete expired sessions", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Session sweeper removed expired sessions", "count", deleted)
	}
	return deleted
}
