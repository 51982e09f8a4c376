package domain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"premium-freight.io/freight/internal/pkg/logger"
)

// EventHandler processes a transition event.
type EventHandler func(ctx context.Context, eventType EventType, event *TransitionEvent) error

// EventDispatcher routes transition events to registered handlers.
type EventDispatcher struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

// NewEventDispatcher creates a new EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Register registers a handler for a specific event type.
func (d *EventDispatcher) Register(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch dispatches an event to all registered handlers.
// Handlers run sequentially; a failing handler is logged but does not stop
// the remaining handlers (best-effort delivery).
func (d *EventDispatcher) Dispatch(ctx context.Context, eventType EventType, event *TransitionEvent) error {
	d.mu.RLock()
	handlers := d.handlers[eventType]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Warn("No handlers registered for event type",
			zap.String("event_type", string(eventType)),
			zap.Int64("order_id", event.OrderID),
		)
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, eventType, event); err != nil {
			logger.Error("Event handler failed",
				zap.String("event_type", string(eventType)),
				zap.Int64("order_id", event.OrderID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s failed: %w", eventType, err)
			}
		}
	}

	return firstErr
}
