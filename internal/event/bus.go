// Package event provides an in-memory bus for streaming progress events to
// attached subscribers (the WebSocket feed).
package event

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fieldline/assistant/internal/domain"
)

// Subscriber is a function that receives events.
type Subscriber func(event *domain.StreamEvent)

// Bus fans progress events out to subscribers keyed by channel.
// Channel keys are "user:{userID}", or "*" for all events.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]Subscriber
	nextID      int
	logger      *zap.SugaredLogger
}

// NewBus creates a new event bus.
func NewBus(logger *zap.SugaredLogger) *Bus {
	return &Bus{
		subscribers: make(map[string]map[int]Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and returns a handle for Unsubscribe.
func (b *Bus) Subscribe(channel string, sub Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[int]Subscriber)
	}
	b.nextID++
	b.subscribers[channel][b.nextID] = sub
	return b.nextID
}

// Unsubscribe removes one subscriber from a channel.
func (b *Bus) Unsubscribe(channel string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers[channel], id)
	if len(b.subscribers[channel]) == 0 {
		delete(b.subscribers, channel)
	}
}

// Publish sends an event to all matching subscribers.
func (b *Bus) Publish(channel string, evt *domain.StreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debugw("publishing event", "type", evt.Type, "channel", channel, "plan_id", evt.PlanID)

	for _, sub := range b.subscribers["*"] {
		sub(evt)
	}
	for _, sub := range b.subscribers[channel] {
		sub(evt)
	}
}
