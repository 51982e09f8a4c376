// Package usecase holds the write paths that must be atomic: an approval
// decision and its side effects commit in a single pgx transaction, with
// the email dispatch jobs enqueued via River InsertTx in the same commit.
package usecase

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/jobs"
	"premium-freight.io/freight/internal/repository"
)

// TransitionWriter applies one approval state transition atomically:
// guarded state update, history append, token mint, outbox insert and
// job enqueue either all commit or none do.
type TransitionWriter struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
}

// NewTransitionWriter creates the atomic transition writer.
func NewTransitionWriter(pool *pgxpool.Pool, riverClient *river.Client[pgx.Tx]) *TransitionWriter {
	return &TransitionWriter{pool: pool, riverClient: riverClient}
}

// Apply executes the plan. It returns false without error when the state
// guard did not match, meaning another actor moved the order first; the
// caller decides whether to re-read and retry.
func (w *TransitionWriter) Apply(ctx context.Context, plan domain.TransitionPlan) (bool, error) {
	if w.pool == nil {
		return false, fmt.Errorf("transition writer is not initialized")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orders := repository.NewOrderRepository(tx)
	applied, err := orders.AdvanceStateGuarded(ctx, plan.OrderID, plan.ExpectedLevel, plan.NewLevel)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	if err := repository.NewHistoryRepository(tx).Append(ctx, &plan.History); err != nil {
		return false, err
	}
	if err := w.writeNotifications(ctx, tx, plan.Tokens, plan.Emails); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transition tx: %w", err)
	}
	return true, nil
}

// IntakeWriter persists a new order atomically. The notification side
// effects are composed by planFn after the order row exists, because the
// action links in the email bodies embed the generated order id.
type IntakeWriter struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
}

// NewIntakeWriter creates the atomic order intake writer.
func NewIntakeWriter(pool *pgxpool.Pool, riverClient *river.Client[pgx.Tx]) *IntakeWriter {
	return &IntakeWriter{pool: pool, riverClient: riverClient}
}

// Create inserts the order with its zero approval state, then the plan's
// history entry, tokens, emails and dispatch jobs, in one transaction.
func (w *IntakeWriter) Create(ctx context.Context, o *domain.Order, planFn domain.PlanFunc) error {
	if w.pool == nil {
		return fmt.Errorf("intake writer is not initialized")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin intake tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := repository.NewOrderRepository(tx).Insert(ctx, o); err != nil {
		return err
	}

	history, tokens, emails, err := planFn(o)
	if err != nil {
		return err
	}
	history.OrderID = o.ID
	if err := repository.NewHistoryRepository(tx).Append(ctx, &history); err != nil {
		return err
	}

	tw := &TransitionWriter{pool: w.pool, riverClient: w.riverClient}
	if err := tw.writeNotifications(ctx, tx, tokens, emails); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit intake tx: %w", err)
	}
	return nil
}

func (w *TransitionWriter) writeNotifications(ctx context.Context, tx pgx.Tx, tokens []domain.ActionToken, emails []domain.OutboxEmail) error {
	tokenRepo := repository.NewTokenRepository(tx)
	for _, t := range tokens {
		if err := tokenRepo.InsertAction(ctx, t); err != nil {
			return err
		}
	}

	outbox := repository.NewOutboxRepository(tx)
	for i := range emails {
		if err := outbox.Enqueue(ctx, &emails[i]); err != nil {
			return err
		}
		if w.riverClient == nil {
			continue
		}
		if _, err := w.riverClient.InsertTx(ctx, tx, jobs.EmailDispatchArgs{OutboxID: emails[i].ID}, nil); err != nil {
			return fmt.Errorf("enqueue email dispatch for outbox %s: %w", emails[i].ID, err)
		}
	}
	return nil
}
