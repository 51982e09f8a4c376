// Package app is the composition root: it assembles configuration,
// infrastructure, modules and the HTTP router into one Application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"premium-freight.io/freight/internal/api/handlers"
	"premium-freight.io/freight/internal/app/modules"
	"premium-freight.io/freight/internal/config"
	"premium-freight.io/freight/internal/infrastructure"
	"premium-freight.io/freight/internal/jobs"
	"premium-freight.io/freight/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	notificationModule := modules.NewNotificationModule(infra)
	baseModules := []modules.Module{notificationModule}

	workers := river.NewWorkers()
	for _, mod := range baseModules {
		mod.RegisterWorkers(workers)
	}
	if err := infra.InitRiver(workers); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}
	registerPeriodicJobs(infra, cfg)

	// The approval module needs the River client: its writers enqueue the
	// delivery job inside the approval transaction.
	approvalModule, err := modules.NewApprovalModule(infra, notificationModule)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init approval module: %w", err)
	}

	allModules := append(baseModules, approvalModule)
	serverDeps := modules.NewServerDeps(cfg, infra, allModules)
	server := handlers.NewServer(serverDeps)

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, serverDeps.JWTCfg.SigningKey),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: allModules,
	}, nil
}

// registerPeriodicJobs schedules the weekly approver digest and the
// token retention cleanup. Cleanup also runs once on startup so a long
// downtime does not leave expired tokens lying around.
func registerPeriodicJobs(infra *modules.Infrastructure, cfg *config.Config) {
	if infra.RiverClient == nil {
		return
	}

	digestInterval := cfg.Approval.DigestInterval
	if digestInterval <= 0 {
		digestInterval = 7 * 24 * time.Hour
	}

	infra.RiverClient.PeriodicJobs().Add(
		river.NewPeriodicJob(
			river.PeriodicInterval(digestInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.WeeklyDigestArgs{}, nil
			},
			nil,
		),
	)
	infra.RiverClient.PeriodicJobs().Add(
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.TokenCleanupArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	)
}
