// Package eventbus delivers contagion notifications to in-process subscribers.
//
// Subscribers run synchronously on the publishing goroutine, ordered by Priority and then by
// subscription order. PriorityMonitor handlers observe the final cancellation state and
// cannot change it.
package eventbus

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/banarnia/infected/internal/contagion"
	"github.com/rs/zerolog/log"
)

type Priority int

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
	PriorityMonitor
)

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	case PriorityMonitor:
		return "monitor"
	default:
		return "unknown"
	}
}

type handler[T any] struct {
	id       uint64
	priority Priority
	fn       func(T)
}

type handlerList[T any] struct {
	items []handler[T]
}

func (l *handlerList[T]) add(h handler[T]) {
	idx, _ := slices.BinarySearchFunc(l.items, h.priority, func(it handler[T], p Priority) int {
		if it.priority <= p {
			return -1
		}
		return 1
	})
	l.items = slices.Insert(l.items, idx, h)
}

func (l *handlerList[T]) remove(id uint64) bool {
	before := len(l.items)
	l.items = slices.DeleteFunc(l.items, func(h handler[T]) bool { return h.id == id })
	return len(l.items) != before
}

func (l *handlerList[T]) snapshot() []handler[T] {
	return slices.Clone(l.items)
}

// Bus implements contagion.EventSink.
type Bus struct {
	mu      sync.RWMutex
	attempt handlerList[*contagion.InfectionAttempt]
	cured   handlerList[contagion.Cured]
	expired handlerList[contagion.ProtectionExpired]
	seq     atomic.Uint64
}

func New() *Bus {
	return &Bus{}
}

// Subscription removes its handler when cancelled.
type Subscription func()

func (b *Bus) OnInfectionAttempt(p Priority, fn func(*contagion.InfectionAttempt)) Subscription {
	id := b.seq.Add(1)
	b.mu.Lock()
	b.attempt.add(handler[*contagion.InfectionAttempt]{id: id, priority: p, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.attempt.remove(id)
		b.mu.Unlock()
	}
}

func (b *Bus) OnCured(p Priority, fn func(contagion.Cured)) Subscription {
	id := b.seq.Add(1)
	b.mu.Lock()
	b.cured.add(handler[contagion.Cured]{id: id, priority: p, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.cured.remove(id)
		b.mu.Unlock()
	}
}

func (b *Bus) OnProtectionExpired(p Priority, fn func(contagion.ProtectionExpired)) Subscription {
	id := b.seq.Add(1)
	b.mu.Lock()
	b.expired.add(handler[contagion.ProtectionExpired]{id: id, priority: p, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.expired.remove(id)
		b.mu.Unlock()
	}
}

func (b *Bus) PublishInfectionAttempt(evt *contagion.InfectionAttempt) {
	b.mu.RLock()
	handlers := b.attempt.snapshot()
	b.mu.RUnlock()

	for _, h := range handlers {
		if h.priority == PriorityMonitor {
			cancelled := evt.Cancelled()
			invoke("infection_attempt", h, evt)
			evt.SetCancelled(cancelled)
			continue
		}
		invoke("infection_attempt", h, evt)
	}
}

func (b *Bus) PublishCured(evt contagion.Cured) {
	b.mu.RLock()
	handlers := b.cured.snapshot()
	b.mu.RUnlock()
	for _, h := range handlers {
		invoke("cured", h, evt)
	}
}

func (b *Bus) PublishProtectionExpired(evt contagion.ProtectionExpired) {
	b.mu.RLock()
	handlers := b.expired.snapshot()
	b.mu.RUnlock()
	for _, h := range handlers {
		invoke("protection_expired", h, evt)
	}
}

func invoke[T any](kind string, h handler[T], evt T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", kind).
				Uint64("handler", h.id).
				Str("priority", h.priority.String()).
				Interface("panic", r).
				Msg("eventbus.Bus.publish handler panicked")
		}
	}()
	h.fn(evt)
}
