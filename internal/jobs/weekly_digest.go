package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"premium-freight.io/freight/internal/notification"
	"premium-freight.io/freight/internal/pkg/logger"
	"premium-freight.io/freight/internal/pkg/worker"
	"premium-freight.io/freight/internal/repository"
	"premium-freight.io/freight/internal/service"
)

// WeeklyDigestArgs is the periodic digest job: one bulk-token summary
// email per approver with pending orders.
type WeeklyDigestArgs struct{}

// Kind returns the job kind identifier for the weekly digest.
func (WeeklyDigestArgs) Kind() string { return "weekly_digest" }

// InsertOpts ensures at most one digest run per day even when the
// periodic schedule and a manual trigger overlap.
func (WeeklyDigestArgs) InsertOpts() river.InsertOpts {
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

// WeeklyDigestWorker fans out per-approver digest composition to the mail
// pool. Each digest carries one bulk approve token covering all listed
// orders; acting on a subset leaves the token valid for the rest.
type WeeklyDigestWorker struct {
	river.WorkerDefaults[WeeklyDigestArgs]
	orders    *repository.OrderRepository
	users     *repository.UserRepository
	approvers *repository.ApproverRepository
	outbox    *repository.OutboxRepository
	tokens    *service.ActionTokenService
	composer  *notification.Composer
	pools     *worker.Pools
}

// NewWeeklyDigestWorker creates a digest worker.
func NewWeeklyDigestWorker(
	orders *repository.OrderRepository,
	users *repository.UserRepository,
	approvers *repository.ApproverRepository,
	outbox *repository.OutboxRepository,
	tokens *service.ActionTokenService,
	composer *notification.Composer,
	pools *worker.Pools,
) *WeeklyDigestWorker {
	return &WeeklyDigestWorker{
		orders:    orders,
		users:     users,
		approvers: approvers,
		outbox:    outbox,
		tokens:    tokens,
		composer:  composer,
		pools:     pools,
	}
}

// Work builds and enqueues the digests.
func (w *WeeklyDigestWorker) Work(ctx context.Context, _ *river.Job[WeeklyDigestArgs]) error {
	if w == nil || w.orders == nil || w.tokens == nil || w.composer == nil {
		return fmt.Errorf("weekly digest worker is not initialized")
	}

	userIDs, err := w.approvers.ListUserIDs(ctx)
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		sent     int
	)
	for _, userID := range userIDs {
		userID := userID
		wg.Add(1)
		task := func(taskCtx context.Context) {
			defer wg.Done()
			if taskCtx.Err() != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = taskCtx.Err()
				}
				mu.Unlock()
				return
			}
			ok, err := w.digestForApprover(taskCtx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("digest for %s: %w", userID, err)
			}
			if ok {
				sent++
			}
		}
		if w.pools != nil && w.pools.Mail != nil {
			if err := w.pools.Mail.Submit(ctx, task); err != nil {
				wg.Done()
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		} else {
			task(ctx)
		}
	}
	wg.Wait()

	logger.Info("weekly digest completed",
		zap.Int("approvers", len(userIDs)),
		zap.Int("digests_sent", sent),
	)
	return firstErr
}

// digestForApprover composes and enqueues one digest. Approvers with
// nothing pending are skipped.
func (w *WeeklyDigestWorker) digestForApprover(ctx context.Context, userID string) (bool, error) {
	rows, err := w.orders.ListAwaitingForApprover(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}

	u, err := w.users.Get(ctx, userID)
	if err != nil {
		return false, err
	}

	orderIDs := make([]int64, 0, len(rows))
	summaries := make([]notification.OrderSummary, 0, len(rows))
	for _, r := range rows {
		orderIDs = append(orderIDs, r.Order.ID)
		summaries = append(summaries, notification.OrderSummary{
			OrderID:     r.Order.ID,
			Plant:       r.Order.Plant,
			CostEUR:     r.Order.CostEUR,
			Description: r.Order.Description,
		})
	}

	bulk, err := w.tokens.MintBulk(ctx, userID, orderIDs, "approve")
	if err != nil {
		return false, err
	}

	email := w.composer.PlanDigest(*u, summaries, bulk)
	if err := w.outbox.Enqueue(ctx, &email); err != nil {
		return false, err
	}

	if client, err := river.ClientFromContextSafely[pgx.Tx](ctx); err == nil {
		if _, err := client.Insert(ctx, EmailDispatchArgs{OutboxID: email.ID}, nil); err != nil {
			return false, fmt.Errorf("enqueue digest dispatch: %w", err)
		}
	}
	return true, nil
}
