// Package domain defines the core types of the Premium Freight approval
// workflow: orders, approval state, approvers and the closed action type.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxApprovalLevel is the highest approval level an order can require.
const MaxApprovalLevel = 5

// RejectedSentinel is the act_approv value marking a rejected order.
// Kept numeric for compatibility with the legacy reporting exports.
const RejectedSentinel = 99

// Status is the derived order status. It is computed from the approval
// state record and never written directly.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ActionType tags an entry in the approval history.
type ActionType string

const (
	ActionCreated  ActionType = "CREATED"
	ActionApproved ActionType = "APPROVED"
	ActionRejected ActionType = "REJECTED"
)

// Action is the closed set of decisions an actor can take on an order.
// Construct values via Approve() or Reject(reason) so that invalid actions
// and reason-less rejections are unrepresentable.
type Action struct {
	kind   ActionType
	reason string
}

// Approve returns the approve action.
func Approve() Action {
	return Action{kind: ActionApproved}
}

// Reject returns the reject action carrying the mandatory reason.
func Reject(reason string) (Action, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Action{}, fmt.Errorf("rejection reason is required")
	}
	return Action{kind: ActionRejected, reason: reason}, nil
}

// ParseAction converts the wire form ("approve"/"reject") into an Action.
// Email links carry the action as a query parameter.
func ParseAction(s, reason string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve":
		return Approve(), nil
	case "reject":
		return Reject(reason)
	default:
		return Action{}, fmt.Errorf("unknown action %q", s)
	}
}

// Kind returns the action tag.
func (a Action) Kind() ActionType { return a.kind }

// Reason returns the rejection reason; empty for approvals.
func (a Action) Reason() string { return a.reason }

// IsReject reports whether the action is a rejection.
func (a Action) IsReject() bool { return a.kind == ActionRejected }

func (a Action) String() string {
	if a.kind == ActionRejected {
		return "reject"
	}
	return "approve"
}

// Order is a premium freight request. The required approval level is fixed
// at creation and never changes afterwards.
type Order struct {
	ID                int64
	CreatorID         string
	Plant             string
	CostEUR           int64 // cents
	Description       string
	RequiredAuthLevel int
	CreatedAt         time.Time
}

// NewOrder validates and builds an order record prior to insertion.
func NewOrder(creatorID, plant, description string, costEUR int64, requiredLevel int) (*Order, error) {
	switch {
	case strings.TrimSpace(creatorID) == "":
		return nil, fmt.Errorf("creator id is required")
	case strings.TrimSpace(plant) == "":
		return nil, fmt.Errorf("plant is required")
	case costEUR < 0:
		return nil, fmt.Errorf("cost must not be negative")
	case requiredLevel < 1 || requiredLevel > MaxApprovalLevel:
		return nil, fmt.Errorf("required approval level must be in [1,%d], got %d", MaxApprovalLevel, requiredLevel)
	}
	return &Order{
		CreatorID:         creatorID,
		Plant:             plant,
		CostEUR:           costEUR,
		Description:       strings.TrimSpace(description),
		RequiredAuthLevel: requiredLevel,
	}, nil
}

// ApprovalState is the single mutable approval record of an order.
// ActApprov is monotonically non-decreasing except for the one irreversible
// jump to RejectedSentinel.
type ApprovalState struct {
	OrderID   int64
	ActApprov int
	UpdatedAt time.Time
}

// IsRejected reports whether the order was rejected.
func (s ApprovalState) IsRejected() bool { return s.ActApprov == RejectedSentinel }

// IsTerminal reports whether the order reached a sink state.
func (s ApprovalState) IsTerminal(requiredLevel int) bool {
	return s.IsRejected() || s.ActApprov >= requiredLevel
}

// NextLevel is the approval level required to advance the order.
// Only meaningful while the order is pending.
func (s ApprovalState) NextLevel() int { return s.ActApprov + 1 }

// DeriveStatus computes the user-visible status from the state record.
func (s ApprovalState) DeriveStatus(requiredLevel int) Status {
	switch {
	case s.IsRejected():
		return StatusRejected
	case s.ActApprov >= requiredLevel:
		return StatusApproved
	default:
		return StatusPending
	}
}

// HistoryEntry is one append-only record in the approval audit trail.
// Entries are never updated or deleted.
type HistoryEntry struct {
	ID        string
	OrderID   int64
	UserID    string
	Action    ActionType
	Level     int
	Comment   string
	CreatedAt time.Time
}

// Approver grants a user the right to act at one approval level.
// A nil Plant denotes a regional approver valid for any plant.
type Approver struct {
	UserID        string
	ApprovalLevel int
	Plant         *string
}

// Matches reports whether the approver may act at level for plant.
// Plant-specific and regional approvers are equally eligible.
func (a Approver) Matches(level int, plant string) bool {
	if a.ApprovalLevel != level {
		return false
	}
	return a.Plant == nil || *a.Plant == plant
}

// User is the minimal identity record the core needs for routing
// notifications. Authentication itself lives outside the core.
type User struct {
	ID    string
	Name  string
	Email string
	Plant string
}
