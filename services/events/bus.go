// Package eventsvc dispatches core events to in-process subscribers.
package eventsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
)

type subscription struct {
	types   []core.EventType
	handler core.EventHandler
}

// Bus delivers every event to its subscribers synchronously, in registration order.
type Bus struct {
	logger core.Logger

	mu   sync.RWMutex
	subs []subscription
}

var _ core.EventPublisher = (*Bus)(nil)

func NewBus(logger core.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers h for the given event types (all types when none given).
func (b *Bus) Subscribe(h core.EventHandler, types ...core.EventType) {
	b.mu.Lock()
	b.subs = append(b.subs, subscription{types: types, handler: h})
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, evt core.Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.accepts(evt.Type) {
			continue
		}
		b.dispatch(ctx, s.handler, evt)
	}
}

// dispatch isolates subscribers: a panicking handler is reported and the next ones still run.
func (b *Bus) dispatch(ctx context.Context, h core.EventHandler, evt core.Event) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("event handler panic: %v", r)
			b.logger.Error(err.Error(), err, map[string]interface{}{"event": evt})
		}
	}()
	h(ctx, evt)
}

func (s subscription) accepts(t core.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, st := range s.types {
		if st == t {
			return true
		}
	}
	return false
}
