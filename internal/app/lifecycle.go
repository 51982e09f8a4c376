package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"premium-freight.io/freight/internal/pkg/logger"
)

// Start begins consuming queued jobs. The HTTP router is usable
// before this; only background work (emails, digests, cleanup)
// waits for it.
func (a *Application) Start(ctx context.Context) error {
	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("Job workers started")
	}
	return nil
}

// Shutdown tears the application down in reverse dependency order:
// job consumption stops first so no new work lands on the pools,
// then modules, pools, and finally the database.
func (a *Application) Shutdown() {
	ctx := context.Background()

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(ctx); err != nil {
			logger.Error("stop river client", zap.Error(err))
		} else {
			logger.Info("Job workers stopped")
		}
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(ctx); err != nil {
			logger.Warn("module shutdown",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
