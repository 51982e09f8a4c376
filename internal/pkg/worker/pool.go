// Package worker provides goroutine pool management.
//
// Naked goroutines are forbidden outside cmd/server; all concurrency goes
// through a pool with context propagation.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"premium-freight.io/freight/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	// General serves request-scoped fan-out work.
	General *Pool

	// Mail serves outbox delivery fan-out inside the email dispatch worker.
	Mail *Pool

	// serviceCtx is the service lifecycle context for detached tasks.
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool sizing.
type PoolConfig struct {
	GeneralPoolSize int
	MailPoolSize    int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize: 100,
		MailPoolSize:    20,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	mailAnts, err := ants.NewPool(cfg.MailPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(30*time.Second), // mail delivery is slower
	)
	if err != nil {
		generalAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		General:       &Pool{pool: generalAnts, name: "general"},
		Mail:          &Pool{pool: mailAnts, name: "mail"},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// The task receives the caller's context and SHOULD check ctx.Done() at
// blocking points. An already-cancelled context is rejected up front.
// Once Submit returns nil the task runs exactly once, even if the context
// is cancelled while the task sits queued: callers hang completion
// signaling (WaitGroups) inside the task, so it must never be dropped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.pool.Submit(func() {
		// May have been cancelled while queued; the task still runs and
		// sees the cancelled context.
		if ctx.Err() != nil {
			logger.Debug("Task starting with cancelled context",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
		}
		task(ctx)
	})
}

// SubmitDetached submits a detached background task bound to the service
// lifecycle context instead of a request context. Use for background work
// that should survive request cancellation but respect graceful shutdown.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	var pool *Pool
	switch poolName {
	case "mail":
		pool = p.Mail
	default:
		pool = p.General
	}

	return pool.pool.Submit(func() {
		// Same guarantee as Submit: accepted tasks always run, seeing the
		// shutdown through the service context.
		if p.serviceCtx.Err() != nil {
			logger.Debug("Detached task starting during shutdown",
				zap.String("pool", poolName),
			)
		}
		task(p.serviceCtx)
	})
}

// Shutdown gracefully shuts down all pools with a timeout.
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.General.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("General pool shutdown timeout", zap.Error(err))
	}
	if err := p.Mail.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Mail pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"general": map[string]int{
			"running": p.General.pool.Running(),
			"free":    p.General.pool.Free(),
			"cap":     p.General.pool.Cap(),
		},
		"mail": map[string]int{
			"running": p.Mail.pool.Running(),
			"free":    p.Mail.pool.Free(),
			"cap":     p.Mail.pool.Cap(),
		},
	}
}
