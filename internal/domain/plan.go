package domain

// TransitionPlan is everything one approval decision writes atomically:
// the guarded state move, its audit entry, and the notification side
// effects (fresh tokens and outbox emails for the next approver set, or
// the outcome email to the creator).
type TransitionPlan struct {
	OrderID       int64
	ExpectedLevel int
	NewLevel      int
	History       HistoryEntry
	Tokens        []ActionToken
	Emails        []OutboxEmail
}

// PlanFunc composes the CREATED history entry and the level-1 approval
// requests for a freshly inserted order. It runs inside the intake
// transaction, after the order id exists; returning an error rolls the
// whole intake back.
type PlanFunc func(o *Order) (HistoryEntry, []ActionToken, []OutboxEmail, error)
