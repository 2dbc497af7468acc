package etl

import (
	"sync"
)

// Events published by a Pipeline.
const (
	EventBatchStarted   = "BatchStarted"
	EventMessageParsed  = "MessageParsed"
	EventMessageSkipped = "MessageSkipped"
	EventMessageFailed  = "MessageFailed"
	EventBatchCompleted = "BatchCompleted"
)

type Event struct {
	Name    string
	Payload any
}

type EventHandler func(Event)

// EventBus fans events out to subscribers. Handlers run synchronously in
// publish order so observers see items in the order they were processed.
type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
	}
}

func (eb *EventBus) Subscribe(eventName string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventName] = append(eb.handlers[eventName], handler)
}

func (eb *EventBus) Publish(eventName string, payload any) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	hs := eb.handlers[eventName]
	eb.mu.RUnlock()
	for _, h := range hs {
		h(Event{Name: eventName, Payload: payload})
	}
}
