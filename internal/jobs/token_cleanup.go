package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"premium-freight.io/freight/internal/pkg/logger"
	"premium-freight.io/freight/internal/repository"
)

// DefaultTokenRetention keeps spent and expired tokens around for a while
// so "no longer available" lookups stay debuggable before the purge.
const DefaultTokenRetention = 30 * 24 * time.Hour

// TokenCleanupArgs is the periodic token purge job.
type TokenCleanupArgs struct{}

// Kind returns the job kind identifier for token cleanup.
func (TokenCleanupArgs) Kind() string { return "token_cleanup" }

// InsertOpts ensures at most one cleanup run per day.
func (TokenCleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// TokenCleanupWorker removes spent and expired action tokens past the
// retention window.
type TokenCleanupWorker struct {
	river.WorkerDefaults[TokenCleanupArgs]
	tokens    *repository.TokenRepository
	retention time.Duration
}

// NewTokenCleanupWorker creates a cleanup worker. Non-positive retention
// falls back to the 30-day default.
func NewTokenCleanupWorker(tokens *repository.TokenRepository, retention time.Duration) *TokenCleanupWorker {
	if retention <= 0 {
		retention = DefaultTokenRetention
	}
	return &TokenCleanupWorker{tokens: tokens, retention: retention}
}

// Work purges old token rows.
func (w *TokenCleanupWorker) Work(ctx context.Context, _ *river.Job[TokenCleanupArgs]) error {
	if w == nil || w.tokens == nil {
		return fmt.Errorf("token cleanup worker is not initialized")
	}

	cutoff := time.Now().UTC().Add(-w.retention)
	removed, err := w.tokens.PurgeExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge tokens before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("token cleanup completed",
		zap.Int64("removed_rows", removed),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("retention", w.retention),
	)
	return nil
}
