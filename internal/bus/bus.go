// Package bus provides the in-process event stream connecting the
// transport layer to the processing pipeline. Publishing never blocks:
// a subscriber that cannot keep up loses events rather than stalling
// the transport callback that produced them.
package bus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event is a single occurrence on the stream. Kind is a dot-separated
// name ("wa.message", "session.phase_changed"); Payload is the
// kind-specific value.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

type subscriber struct {
	id     int
	prefix string
	ch     chan Event
}

// Bus fans events out to subscribers matched by kind prefix.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscriber
	nextID  int
	dropped atomic.Int64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Publish delivers evt to every subscriber whose prefix matches
// evt.Kind. Full subscriber channels are skipped.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !strings.HasPrefix(evt.Kind, s.prefix) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers interest in events whose kind starts with prefix.
// The returned cancel function detaches the subscriber; the channel is
// never closed by the bus.
func (b *Bus) Subscribe(prefix string, buffer int) (<-chan Event, func()) {
	s := &subscriber{prefix: prefix, ch: make(chan Event, buffer)}

	b.mu.Lock()
	s.id = b.nextID
	b.nextID++
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, cur := range b.subs {
			if cur.id == s.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
	return s.ch, cancel
}

// Dropped reports how many events were discarded because a subscriber
// channel was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
