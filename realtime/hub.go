package realtime

import (
	"log"
	"sync"
)

const defaultBuffer = 64

// Hub keeps the set of live subscriptions and delivers published changes
// to the ones whose table and predicate match.
type Hub struct {
	mutex  sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: defaultBuffer,
	}
}

// Subscription is a cancellable handle on a filtered change stream.
type Subscription struct {
	hub    *Hub
	table  string
	pred   Predicate
	events chan Change
	once   sync.Once
	done   chan struct{}
}

// Events returns the channel changes are delivered on. It is closed by Cancel.
func (s *Subscription) Events() <-chan Change {
	return s.events
}

// Done is closed once the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel removes the subscription from its hub. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.mutex.Lock()
		delete(s.hub.subs, s)
		close(s.events)
		s.hub.mutex.Unlock()
		close(s.done)
	})
}

// Subscribe registers interest in changes to table that satisfy pred.
// A nil pred matches every row.
func (h *Hub) Subscribe(table string, pred Predicate) *Subscription {
	if pred == nil {
		pred = All()
	}
	sub := &Subscription{
		hub:    h,
		table:  table,
		pred:   pred,
		events: make(chan Change, h.buffer),
		done:   make(chan struct{}),
	}

	h.mutex.Lock()
	h.subs[sub] = struct{}{}
	h.mutex.Unlock()

	return sub
}

// SubscribeFunc is Subscribe with a callback run on its own goroutine for
// every delivered change until the subscription is cancelled.
func (h *Hub) SubscribeFunc(table string, pred Predicate, onChange func(Change)) *Subscription {
	sub := h.Subscribe(table, pred)
	go func() {
		for change := range sub.events {
			onChange(change)
		}
	}()
	return sub
}

// Publish delivers change to every matching subscription without blocking.
// A subscriber whose buffer is full misses the hint.
func (h *Hub) Publish(change Change) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for sub := range h.subs {
		if sub.table != change.Table || !sub.pred(change.Row) {
			continue
		}
		select {
		case sub.events <- change:
		default:
			log.Printf("realtime: dropped %s %s change for slow subscriber", change.Table, change.Event)
		}
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subs)
}
