package http

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/latticehq/lattice/pkg/domain"
)

// Event is one SSE payload.
type Event struct {
	Type domain.EventType `json:"type"`
	Data any              `json:"data"`
}

// Broadcaster fans engine lifecycle events out to SSE subscribers. Wire its
// Hooks into the engine at construction time.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Hooks returns lifecycle hooks that publish every engine event.
func (b *Broadcaster) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStatusChange: func(ctx context.Context, e *domain.NodeStatusEvent) {
			b.Publish(Event{Type: domain.EventNodeStatusChanged, Data: e})
		},
		OnGraphMutate: func(ctx context.Context, e *domain.MutationEvent) {
			b.Publish(Event{Type: domain.EventGraphMutated, Data: e})
		},
		OnRunComplete: func(ctx context.Context, e *domain.RunEvent) {
			b.Publish(Event{Type: domain.EventRunCompleted, Data: e})
		},
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber. Slow subscribers drop
// events instead of blocking the engine.
func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (e Event) marshal() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"type":"error"}`)
	}
	return data
}
