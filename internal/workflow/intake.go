package workflow

import (
	"context"
	"time"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

// IntakeApplier persists a new order and its notification side effects
// in one transaction.
type IntakeApplier interface {
	Create(ctx context.Context, o *domain.Order, planFn domain.PlanFunc) error
}

// LevelPolicy derives the required approval level from the order cost.
type LevelPolicy interface {
	RequiredLevelForCost(costEUR int64) int
}

// Intake creates orders and kicks off the first approval round.
type Intake struct {
	approvers  ApproverStore
	writer     IntakeApplier
	planner    Planner
	policy     LevelPolicy
	dispatcher *domain.EventDispatcher
}

// NewIntake creates the order intake. dispatcher may be nil.
func NewIntake(approvers ApproverStore, writer IntakeApplier, planner Planner, policy LevelPolicy, dispatcher *domain.EventDispatcher) *Intake {
	return &Intake{
		approvers:  approvers,
		writer:     writer,
		planner:    planner,
		policy:     policy,
		dispatcher: dispatcher,
	}
}

// CreateOrder validates and stores a new order. requiredLevel zero means
// derive it from the cost bands; an explicit value wins within 1..5.
// The level-1 approver set must exist before anything is written.
func (i *Intake) CreateOrder(ctx context.Context, creatorID, plant, description string, costEUR int64, requiredLevel int) (*domain.Order, error) {
	if requiredLevel == 0 {
		requiredLevel = i.policy.RequiredLevelForCost(costEUR)
	}
	o, err := domain.NewOrder(creatorID, plant, description, costEUR, requiredLevel)
	if err != nil {
		return nil, perrors.BadRequest(perrors.CodeValidationFailed, err.Error())
	}

	firstApprovers, err := i.approvers.FindForLevel(ctx, 1, plant)
	if err != nil {
		return nil, err
	}
	if len(firstApprovers) == 0 {
		return nil, perrors.ErrNoApproverConfigured
	}

	err = i.writer.Create(ctx, o, func(created *domain.Order) (domain.HistoryEntry, []domain.ActionToken, []domain.OutboxEmail, error) {
		history := domain.HistoryEntry{
			OrderID: created.ID,
			UserID:  creatorID,
			Action:  domain.ActionCreated,
			Level:   0,
		}
		tokens, emails, err := i.planner.PlanApprovalRequest(created, 1, firstApprovers)
		if err != nil {
			return domain.HistoryEntry{}, nil, nil, err
		}
		return history, tokens, emails, nil
	})
	if err != nil {
		return nil, err
	}

	if i.dispatcher != nil {
		event := &domain.TransitionEvent{
			OrderID:   o.ID,
			ActorID:   creatorID,
			NewLevel:  0,
			Status:    domain.StatusPending,
			Timestamp: time.Now().UTC(),
		}
		_ = i.dispatcher.Dispatch(ctx, domain.EventOrderSubmitted, event)
	}
	return o, nil
}
