package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vidinfra/subflow/internal/publisher"
	"github.com/vidinfra/subflow/internal/types"
)

// CapturedEvent is one event as a test observed it
type CapturedEvent struct {
	EventName string
	TenantID  string
	Timestamp time.Time
	Payload   map[string]any
}

// InMemoryEventPublisher captures published events for assertions instead
// of routing them through a broker
type InMemoryEventPublisher struct {
	mu     sync.RWMutex
	events []*CapturedEvent
}

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

// NewInMemoryEventPublisher creates a capturing publisher
func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{}
}

func (p *InMemoryEventPublisher) Publish(ctx context.Context, eventName string, payload map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if payload == nil {
		payload = map[string]any{}
	}
	if _, ok := payload["tenant_id"]; !ok {
		payload["tenant_id"] = types.GetTenantID(ctx)
	}

	p.events = append(p.events, &CapturedEvent{
		EventName: eventName,
		TenantID:  types.GetTenantID(ctx),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	return nil
}

func (p *InMemoryEventPublisher) Close() error {
	return nil
}

// Events returns a snapshot of everything published so far
func (p *InMemoryEventPublisher) Events() []*CapturedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*CapturedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventsByName returns the captured events with the given name
func (p *InMemoryEventPublisher) EventsByName(name string) []*CapturedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*CapturedEvent
	for _, e := range p.events {
		if e.EventName == name {
			out = append(out, e)
		}
	}
	return out
}

// HasEvent reports whether an event with the given name was published
func (p *InMemoryEventPublisher) HasEvent(name string) bool {
	return len(p.EventsByName(name)) > 0
}

// Clear drops all captured events
func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
