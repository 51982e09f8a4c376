package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"premium-freight.io/freight/internal/api/handlers"
	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/pkg/logger"
	"premium-freight.io/freight/internal/usecase"
	"premium-freight.io/freight/internal/workflow"
)

// ApprovalModule wires the approval state machine with the atomic
// transaction writers. Created after the River client exists, because
// the writers enqueue delivery jobs inside their transactions.
type ApprovalModule struct {
	infra       *Infrastructure
	engine      *workflow.Engine
	intake      *workflow.Intake
	coordinator *workflow.Coordinator
}

// NewApprovalModule creates the approval module after River is initialized.
func NewApprovalModule(infra *Infrastructure, notif *NotificationModule) (*ApprovalModule, error) {
	if infra == nil || infra.Pool == nil || infra.RiverClient == nil {
		return nil, fmt.Errorf("approval module requires pgx pool and river client")
	}
	if notif == nil {
		return nil, fmt.Errorf("approval module requires the notification module")
	}

	repos := infra.Repos
	writer := usecase.NewTransitionWriter(infra.Pool, infra.RiverClient)
	intakeWriter := usecase.NewIntakeWriter(infra.Pool, infra.RiverClient)

	dispatcher := domain.NewEventDispatcher()
	registerTransitionLogging(dispatcher)

	engine := workflow.NewEngine(repos.Orders, repos.Approvers, repos.Users, writer, notif.Composer(), dispatcher)
	intake := workflow.NewIntake(repos.Approvers, intakeWriter, notif.Composer(), infra.Config.Approval, dispatcher)

	return &ApprovalModule{
		infra:       infra,
		engine:      engine,
		intake:      intake,
		coordinator: workflow.NewCoordinator(engine),
	}, nil
}

func (m *ApprovalModule) Name() string { return "approval" }

func (m *ApprovalModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Engine = m.engine
	deps.Intake = m.intake
	deps.Coordinator = m.coordinator
	deps.Orders = m.infra.Repos.Orders
	deps.History = m.infra.Repos.History
	deps.Creds = m.infra.Repos.Users
}

func (m *ApprovalModule) RegisterWorkers(_ *river.Workers) {}

func (m *ApprovalModule) Shutdown(context.Context) error { return nil }

// registerTransitionLogging attaches a structured-log consumer for every
// lifecycle event. The durable audit trail is the approval_history table;
// this is for operators tailing the service.
func registerTransitionLogging(d *domain.EventDispatcher) {
	log := func(_ context.Context, eventType domain.EventType, e *domain.TransitionEvent) error {
		logger.Info("order transition",
			zap.String("event", string(eventType)),
			zap.Int64("order_id", e.OrderID),
			zap.String("actor_id", e.ActorID),
			zap.Int("new_level", e.NewLevel),
			zap.String("status", string(e.Status)),
		)
		return nil
	}
	for _, et := range []domain.EventType{
		domain.EventOrderSubmitted,
		domain.EventOrderAdvanced,
		domain.EventOrderApproved,
		domain.EventOrderRejected,
	} {
		d.Register(et, log)
	}
}
