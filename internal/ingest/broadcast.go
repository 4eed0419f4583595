package ingest

import (
	"sync"
	"time"

	"everterm/internal/universe"
)

// RefreshEvent is broadcast after a region's snapshot has been handed to the
// applicator.
type RefreshEvent struct {
	RegionID universe.RegionID
	Expires  time.Time
}

const subscriberBuffer = 256

// Broadcaster fans RefreshEvents out to subscribers. Publishing never
// blocks: events to a full or absent subscriber are dropped, which consumers
// (the interval tracker) tolerate by design.
type Broadcaster struct {
	mu   sync.Mutex
	subs []chan RefreshEvent
}

// Subscribe registers a new subscriber channel.
func (b *Broadcaster) Subscribe() <-chan RefreshEvent {
	ch := make(chan RefreshEvent, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber that has room.
func (b *Broadcaster) Publish(ev RefreshEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
