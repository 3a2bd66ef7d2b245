package event

import (
	"sync"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"go.uber.org/zap"
)

// Log is the append-only record of marketplace facts. Events are ordered
// by the sequence the log assigns at append time and are never mutated or
// removed. Subscribers receive events in append order; a subscriber that
// stops draining loses events once its buffer fills.
type Log struct {
	mu        sync.RWMutex
	events    []entity.MarketplaceEvent
	listeners []chan entity.MarketplaceEvent
}

func NewLog() *Log {
	return &Log{}
}

// Append records the event, assigns its sequence number and fans it out
// to subscribers. The sequence space is dense from 1.
func (l *Log) Append(ev entity.MarketplaceEvent) entity.MarketplaceEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Sequence = uint64(len(l.events)) + 1
	l.events = append(l.events, ev)

	for _, listener := range l.listeners {
		select {
		case listener <- ev:
		default:
			zap.L().With(
				zap.Uint64("sequence", ev.Sequence),
				zap.String("type", string(ev.Type)),
			).Warn("EventLog: Dropping event for slow subscriber")
		}
	}

	return ev
}

// Subscribe returns a channel that receives every event appended after
// the call, in order.
func (l *Log) Subscribe(buffer int) <-chan entity.MarketplaceEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	listener := make(chan entity.MarketplaceEvent, buffer)
	l.listeners = append(l.listeners, listener)

	return listener
}

// All returns a copy of the full event history.
func (l *Log) All() []entity.MarketplaceEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := make([]entity.MarketplaceEvent, len(l.events))
	copy(events, l.events)

	return events
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.events)
}
