package ingest

import (
	"sync"
	"time"

	"everterm/internal/universe"
)

// Tracker maintains the per-region next-expiry map. The key set is fixed at
// construction to the region catalog; values start nil and are stamped on
// every observed refresh. Dropped broadcast events only make the map lag,
// never diverge.
type Tracker struct {
	mu        sync.RWMutex
	intervals map[universe.RegionID]*time.Time
}

// NewTracker pre-populates the map with every known region.
func NewTracker(regions []universe.Region) *Tracker {
	intervals := make(map[universe.RegionID]*time.Time, len(regions))
	for _, region := range regions {
		intervals[region.ID] = nil
	}
	return &Tracker{intervals: intervals}
}

// Listen consumes refresh events until the channel closes. Run it in its own
// goroutine.
func (t *Tracker) Listen(events <-chan RefreshEvent) {
	for ev := range events {
		t.mu.Lock()
		if _, known := t.intervals[ev.RegionID]; known {
			expires := ev.Expires
			t.intervals[ev.RegionID] = &expires
		}
		t.mu.Unlock()
	}
}

// Intervals returns a consistent copy of the interval map.
func (t *Tracker) Intervals() map[universe.RegionID]*time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[universe.RegionID]*time.Time, len(t.intervals))
	for id, expires := range t.intervals {
		out[id] = expires
	}
	return out
}
