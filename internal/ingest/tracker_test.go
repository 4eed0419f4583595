package ingest

import (
	"testing"
	"time"

	"everterm/internal/universe"
)

func TestTracker_PrepopulatedNil(t *testing.T) {
	tracker := NewTracker([]universe.Region{forge, domain})
	intervals := tracker.Intervals()
	if len(intervals) != 2 {
		t.Fatalf("intervals = %d entries, want 2", len(intervals))
	}
	if intervals[forge.ID] != nil || intervals[domain.ID] != nil {
		t.Error("fresh tracker should hold nil expiries")
	}
}

func TestTracker_ListenUpdates(t *testing.T) {
	tracker := NewTracker([]universe.Region{forge, domain})
	bus := &Broadcaster{}
	events := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		tracker.Listen(events)
		close(done)
	}()

	expires := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	bus.Publish(RefreshEvent{RegionID: forge.ID, Expires: expires})
	// Unknown regions never add keys.
	bus.Publish(RefreshEvent{RegionID: universe.RegionID(10999999), Expires: expires})
	bus.Close()
	<-done

	intervals := tracker.Intervals()
	if len(intervals) != 2 {
		t.Fatalf("intervals grew to %d entries", len(intervals))
	}
	if got := intervals[forge.ID]; got == nil || !got.Equal(expires) {
		t.Errorf("forge expiry = %v, want %v", got, expires)
	}
	if intervals[domain.ID] != nil {
		t.Error("domain expiry should still be nil")
	}
}

func TestBroadcaster_PublishNeverBlocks(t *testing.T) {
	bus := &Broadcaster{}
	ch := bus.Subscribe()

	// Fill the subscriber buffer and keep publishing; the overflow drops.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(RefreshEvent{RegionID: forge.ID})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Errorf("received = %d, want buffer size %d", received, subscriberBuffer)
	}
}
