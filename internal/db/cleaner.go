// Package db opens the Postgres share store and runs its maintenance jobs.
package db

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/metrics"
)

// ExpiredShareDeleter removes public links whose expiration date is before a cutoff.
type ExpiredShareDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// StartExpiredShareCleaner deletes expired public links every interval until
// ctx is cancelled. A link stays valid through its expiration day.
func StartExpiredShareCleaner(
	ctx context.Context,
	store ExpiredShareDeleter,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.DeleteExpired(ctx, StartOfDay(time.Now()))
				if err != nil {
					log.Error("failed to clean expired shares", zap.Error(err))
					continue
				}
				metrics.RecordExpiredSharesCleaned(removed)
				if removed > 0 {
					log.Info("cleaned expired shares", zap.Int64("removed", removed))
				}
			}
		}
	}()
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
