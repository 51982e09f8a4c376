package domain

import "time"

// ActionToken authorizes exactly one approval action on one order for one
// recipient. Consumption is a single atomic flip of is_used.
type ActionToken struct {
	Token     string
	OrderID   int64
	UserID    string
	Action    string // "approve" or "reject"
	IsUsed    bool
	ExpiresAt *time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

// BulkActionToken authorizes one action across a set of orders, typically
// minted by the weekly digest. It carries no used flag: each order's own
// terminal state guards against replay, so acting on a subset leaves the
// token valid for the rest.
type BulkActionToken struct {
	Token     string
	UserID    string
	OrderIDs  []int64
	Action    string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// OutboxEmail is a queued outbound notification. The approval core only
// appends rows; delivery and status transitions belong to the dispatch job.
type OutboxEmail struct {
	ID        string
	Recipient string
	Subject   string
	Body      string
	Status    string // PENDING, SENT, FAILED
	OrderID   *int64
	CreatedAt time.Time
	SentAt    *time.Time
}

// Outbox email statuses.
const (
	EmailStatusPending = "PENDING"
	EmailStatusSent    = "SENT"
	EmailStatusFailed  = "FAILED"
)
