package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
	"premium-freight.io/freight/internal/pkg/logger"
)

// TransitionApplier commits one transition plan atomically. A false return
// means the state guard did not match: someone else moved the order first.
type TransitionApplier interface {
	Apply(ctx context.Context, plan domain.TransitionPlan) (bool, error)
}

// Planner composes the notification side effects of a transition.
type Planner interface {
	PlanApprovalRequest(o *domain.Order, level int, approvers []domain.User) ([]domain.ActionToken, []domain.OutboxEmail, error)
	PlanOutcome(o *domain.Order, creator domain.User, status domain.Status, reason string) []domain.OutboxEmail
}

// Result describes a completed transition.
type Result struct {
	Order    *domain.Order
	NewLevel int
	Status   domain.Status
}

// Engine drives approval state transitions. Every decision re-reads the
// current state, validates the actor against it and commits through a
// guarded conditional update; a lost race is retried once against fresh
// state before giving up.
type Engine struct {
	orders     OrderStore
	approvers  ApproverStore
	users      UserStore
	resolver   *Resolver
	writer     TransitionApplier
	planner    Planner
	dispatcher *domain.EventDispatcher
}

// NewEngine creates the transition engine. dispatcher may be nil.
func NewEngine(orders OrderStore, approvers ApproverStore, users UserStore, writer TransitionApplier, planner Planner, dispatcher *domain.EventDispatcher) *Engine {
	return &Engine{
		orders:     orders,
		approvers:  approvers,
		users:      users,
		resolver:   NewResolver(orders, approvers),
		writer:     writer,
		planner:    planner,
		dispatcher: dispatcher,
	}
}

// Resolver exposes the engine's approver routing.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Approve advances the order by one level on behalf of actorID.
// Reaching the required level approves the order.
func (e *Engine) Approve(ctx context.Context, orderID int64, actorID string) (*Result, error) {
	return e.transition(ctx, orderID, actorID, domain.Approve())
}

// Reject moves the order to the rejected sink. The reason is mandatory
// and recorded in the history entry.
func (e *Engine) Reject(ctx context.Context, orderID int64, actorID, reason string) (*Result, error) {
	action, err := domain.Reject(reason)
	if err != nil {
		return nil, perrors.ErrReasonMissing
	}
	return e.transition(ctx, orderID, actorID, action)
}

// Submit executes an action parsed from the wire.
func (e *Engine) Submit(ctx context.Context, orderID int64, actorID string, action domain.Action) (*Result, error) {
	return e.transition(ctx, orderID, actorID, action)
}

func (e *Engine) transition(ctx context.Context, orderID int64, actorID string, action domain.Action) (*Result, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// One retry after a lost guard. The second attempt runs against fresh
	// state, so a terminal outcome reached by the competing actor is
	// reported as already-terminal, not as a conflict.
	for attempt := 0; ; attempt++ {
		res, applied, err := e.attempt(ctx, o, actorID, action)
		if err != nil {
			return nil, err
		}
		if applied {
			e.emit(ctx, o, actorID, res, action)
			return res, nil
		}
		if attempt >= 1 {
			return nil, perrors.ErrConcurrentModification
		}
		logger.Debug("approval state guard lost, retrying against fresh state",
			zap.Int64("order_id", orderID),
			zap.String("actor_id", actorID),
		)
	}
}

func (e *Engine) attempt(ctx context.Context, o *domain.Order, actorID string, action domain.Action) (*Result, bool, error) {
	state, err := e.orders.GetState(ctx, o.ID)
	if err != nil {
		return nil, false, err
	}
	if state.IsTerminal(o.RequiredAuthLevel) {
		return nil, false, perrors.ErrAlreadyTerminal
	}

	var plan domain.TransitionPlan
	if action.IsReject() {
		plan, err = e.planReject(ctx, o, state, actorID, action.Reason())
	} else {
		plan, err = e.planApprove(ctx, o, state, actorID)
	}
	if err != nil {
		return nil, false, err
	}

	applied, err := e.writer.Apply(ctx, plan)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, false, nil
	}

	newState := domain.ApprovalState{OrderID: o.ID, ActApprov: plan.NewLevel}
	return &Result{
		Order:    o,
		NewLevel: plan.NewLevel,
		Status:   newState.DeriveStatus(o.RequiredAuthLevel),
	}, true, nil
}

func (e *Engine) planApprove(ctx context.Context, o *domain.Order, state *domain.ApprovalState, actorID string) (domain.TransitionPlan, error) {
	next := state.NextLevel()
	ok, err := e.approvers.Exists(ctx, actorID, next, o.Plant)
	if err != nil {
		return domain.TransitionPlan{}, err
	}
	if !ok {
		return domain.TransitionPlan{}, perrors.ErrInvalidActor
	}

	plan := domain.TransitionPlan{
		OrderID:       o.ID,
		ExpectedLevel: state.ActApprov,
		NewLevel:      next,
		History: domain.HistoryEntry{
			OrderID: o.ID,
			UserID:  actorID,
			Action:  domain.ActionApproved,
			Level:   next,
		},
	}

	if next >= o.RequiredAuthLevel {
		creator, err := e.users.Get(ctx, o.CreatorID)
		if err != nil {
			return domain.TransitionPlan{}, err
		}
		plan.Emails = e.planner.PlanOutcome(o, *creator, domain.StatusApproved, "")
		return plan, nil
	}

	nextApprovers, err := e.resolver.approversForLevel(ctx, next+1, o.Plant)
	if err != nil {
		return domain.TransitionPlan{}, err
	}
	plan.Tokens, plan.Emails, err = e.planner.PlanApprovalRequest(o, next+1, nextApprovers)
	if err != nil {
		return domain.TransitionPlan{}, err
	}
	return plan, nil
}

func (e *Engine) planReject(ctx context.Context, o *domain.Order, state *domain.ApprovalState, actorID, reason string) (domain.TransitionPlan, error) {
	// Rejection is allowed for approvers of the current or the next level:
	// someone who already approved may still pull the order back as long
	// as it is pending.
	allowed, err := e.approvers.Exists(ctx, actorID, state.NextLevel(), o.Plant)
	if err != nil {
		return domain.TransitionPlan{}, err
	}
	if !allowed && state.ActApprov >= 1 {
		allowed, err = e.approvers.Exists(ctx, actorID, state.ActApprov, o.Plant)
		if err != nil {
			return domain.TransitionPlan{}, err
		}
	}
	if !allowed {
		return domain.TransitionPlan{}, perrors.ErrInvalidActor
	}

	creator, err := e.users.Get(ctx, o.CreatorID)
	if err != nil {
		return domain.TransitionPlan{}, err
	}

	return domain.TransitionPlan{
		OrderID:       o.ID,
		ExpectedLevel: state.ActApprov,
		NewLevel:      domain.RejectedSentinel,
		History: domain.HistoryEntry{
			OrderID: o.ID,
			UserID:  actorID,
			Action:  domain.ActionRejected,
			Level:   domain.RejectedSentinel,
			Comment: reason,
		},
		Emails: e.planner.PlanOutcome(o, *creator, domain.StatusRejected, reason),
	}, nil
}

func (e *Engine) emit(ctx context.Context, o *domain.Order, actorID string, res *Result, action domain.Action) {
	if e.dispatcher == nil {
		return
	}
	event := &domain.TransitionEvent{
		OrderID:   o.ID,
		ActorID:   actorID,
		NewLevel:  res.NewLevel,
		Status:    res.Status,
		Reason:    action.Reason(),
		Timestamp: time.Now().UTC(),
	}
	eventType := domain.EventOrderAdvanced
	switch res.Status {
	case domain.StatusApproved:
		eventType = domain.EventOrderApproved
	case domain.StatusRejected:
		eventType = domain.EventOrderRejected
	}
	if err := e.dispatcher.Dispatch(ctx, eventType, event); err != nil {
		logger.Warn("transition event handler failed",
			zap.Int64("order_id", o.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}
