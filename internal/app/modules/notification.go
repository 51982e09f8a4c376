package modules

import (
	"context"

	"github.com/riverqueue/river"

	"premium-freight.io/freight/internal/api/handlers"
	"premium-freight.io/freight/internal/jobs"
	"premium-freight.io/freight/internal/notification"
	"premium-freight.io/freight/internal/service"
)

// NotificationModule owns everything that turns workflow decisions into
// email: the token service behind the action links, the composer that
// renders emails, and the River workers draining the outbox.
type NotificationModule struct {
	infra    *Infrastructure
	mailer   jobs.Mailer
	tokens   *service.ActionTokenService
	composer *notification.Composer
}

// NewNotificationModule wires token minting and email composition.
func NewNotificationModule(infra *Infrastructure) *NotificationModule {
	cfg := infra.Config
	tokens := service.NewActionTokenService(
		infra.Repos.Tokens,
		cfg.Approval.TokenTTL,
		cfg.Approval.BulkTokenTTL,
	)
	composer := notification.NewComposer(tokens, cfg.Mail.BaseURL)

	// TODO: replace with an SMTP mailer once the relay credentials land
	// in the deployment config.
	var mailer jobs.Mailer = jobs.LogMailer{}

	return &NotificationModule{
		infra:    infra,
		mailer:   mailer,
		tokens:   tokens,
		composer: composer,
	}
}

// Tokens exposes the action token service to sibling modules.
func (m *NotificationModule) Tokens() *service.ActionTokenService { return m.tokens }

// Composer exposes the email composer to sibling modules.
func (m *NotificationModule) Composer() *notification.Composer { return m.composer }

func (m *NotificationModule) Name() string { return "notification" }

func (m *NotificationModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Tokens = m.tokens
}

func (m *NotificationModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil || m.infra == nil {
		return
	}
	repos := m.infra.Repos
	river.AddWorker(workers, jobs.NewEmailDispatchWorker(repos.Outbox, m.mailer))
	river.AddWorker(workers, jobs.NewWeeklyDigestWorker(
		repos.Orders, repos.Users, repos.Approvers, repos.Outbox,
		m.tokens, m.composer, m.infra.Pools,
	))
	river.AddWorker(workers, jobs.NewTokenCleanupWorker(repos.Tokens, m.infra.Config.Approval.TokenRetention))
}

func (m *NotificationModule) Shutdown(context.Context) error { return nil }
