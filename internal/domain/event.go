package domain

import (
	"encoding/json"
	"time"
)

// EventType defines the type of domain event.
type EventType string

const (
	// Order lifecycle events.
	EventOrderSubmitted EventType = "ORDER_SUBMITTED"
	EventOrderAdvanced  EventType = "ORDER_LEVEL_ADVANCED"
	EventOrderApproved  EventType = "ORDER_APPROVED"
	EventOrderRejected  EventType = "ORDER_REJECTED"
)

// TransitionEvent is emitted by the state machine on every successful
// transition. Consumers (notification triggers) decide whether fresh
// action tokens are needed based on the new state.
type TransitionEvent struct {
	OrderID   int64     `json:"order_id"`
	ActorID   string    `json:"actor_id"`
	NewLevel  int       `json:"new_level"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the event payload to JSON bytes.
func (e TransitionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
