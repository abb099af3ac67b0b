// Package events carries match change notifications from the services to
// whatever delivers them to clients.
package events

import (
	"context"
	"sync"

	"github.com/mcoot/fairway/internal/model"
)

// Publisher receives match events. Publishing never fails the operation that
// produced the event; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, model.Event) {}

// Multi publishes each event to every publisher in turn
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event model.Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}

// Recorder keeps published events in memory (for tests)
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *Recorder) Publish(_ context.Context, event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns everything published so far
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// Types returns the type of every published event, in order
func (r *Recorder) Types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
