package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"premium-freight.io/freight/internal/config"
	"premium-freight.io/freight/internal/infrastructure"
	"premium-freight.io/freight/internal/pkg/worker"
	"premium-freight.io/freight/internal/repository"
)

// Repositories bundles the data access layer. All of them share the one
// connection pool; transactional callers get per-tx copies via WithTx.
type Repositories struct {
	Orders    *repository.OrderRepository
	Users     *repository.UserRepository
	Approvers *repository.ApproverRepository
	History   *repository.HistoryRepository
	Tokens    *repository.TokenRepository
	Outbox    *repository.OutboxRepository
}

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Pools       *worker.Pools
	Pool        *pgxpool.Pool
	RiverClient *river.Client[pgx.Tx]
	Repos       *Repositories
}

// NewInfrastructure initializes the database, the worker pools and the
// repository layer.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Dev-mode: create the schema and the River queue tables in place.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		MailPoolSize:    cfg.Worker.MailPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	return &Infrastructure{
		Config: cfg,
		DB:     db,
		Pools:  pools,
		Pool:   db.Pool,
		Repos: &Repositories{
			Orders:    repository.NewOrderRepository(db.Pool),
			Users:     repository.NewUserRepository(db.Pool),
			Approvers: repository.NewApproverRepository(db.Pool),
			History:   repository.NewHistoryRepository(db.Pool),
			Tokens:    repository.NewTokenRepository(db.Pool),
			Outbox:    repository.NewOutboxRepository(db.Pool),
		},
	}, nil
}

// InitRiver initializes the River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
