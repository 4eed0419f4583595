package ingest

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"everterm/internal/market"
	"everterm/internal/universe"
)

// Book owns the global market and the per-region previous snapshots. Apply
// is called by exactly one goroutine (the applicator); reads go through the
// query methods, which take the book lock only long enough to clone.
type Book struct {
	mu     sync.Mutex
	global *market.Market

	// prev is applicator-private: every snapshot passes through Apply once,
	// so the map is single-writer and needs no lock.
	prev map[universe.RegionID]*market.RegionSnapshot
}

// NewBook creates an empty global book.
func NewBook() *Book {
	return &Book{
		global: market.NewMarket(),
		prev:   make(map[universe.RegionID]*market.RegionSnapshot),
	}
}

// Apply merges one regional snapshot into the global book. The delta against
// the region's previous snapshot is computed outside the lock; only the
// in-memory mutation holds it.
func (b *Book) Apply(snap *market.RegionSnapshot) {
	prevMarket := market.NewMarket()
	if prev, ok := b.prev[snap.Region.ID]; ok {
		prevMarket = prev.Market
	}

	diff := market.Delta(prevMarket, snap.Market)

	var added, modified, removed int

	b.mu.Lock()
	for typeID, ids := range diff.Removed {
		book, ok := b.global.Items[typeID]
		if !ok {
			continue
		}
		for _, id := range ids {
			delete(book.Orders, id)
			removed++
		}
	}
	for typeID, orders := range diff.New {
		book, ok := b.global.Items[typeID]
		if !ok {
			book = market.NewOrderBook(typeID)
			b.global.Items[typeID] = book
		}
		for _, order := range orders {
			book.Orders[order.ID] = order
			added++
		}
	}
	for typeID, orders := range diff.Modified {
		book, ok := b.global.Items[typeID]
		if !ok {
			book = market.NewOrderBook(typeID)
			b.global.Items[typeID] = book
		}
		for _, order := range orders {
			book.Orders[order.ID] = order
			modified++
		}
	}
	if snap.LastModified.After(b.global.LastModified) {
		b.global.LastModified = snap.LastModified
	}
	if snap.Expires.After(b.global.Expires) {
		b.global.Expires = snap.Expires
	}
	b.mu.Unlock()

	b.prev[snap.Region.ID] = snap

	snapshotsApplied.Inc()
	ordersApplied.WithLabelValues("new").Add(float64(added))
	ordersApplied.WithLabelValues("modified").Add(float64(modified))
	ordersApplied.WithLabelValues("removed").Add(float64(removed))

	log.Info().
		Str("region", snap.Region.Name).
		Int("new", added).
		Int("modified", modified).
		Int("removed", removed).
		Msg("applied region delta")
}

// OrdersByType clones all orders for one type. The second return is false
// when the type has no book.
func (b *Book) OrdersByType(t universe.TypeID) ([]market.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	book, ok := b.global.Items[t]
	if !ok {
		return nil, false
	}
	orders := make([]market.Order, 0, len(book.Orders))
	for _, order := range book.Orders {
		orders = append(orders, order)
	}
	return orders, true
}

// Timestamps returns the global last-modified and expires maxima.
func (b *Book) Timestamps() (lastModified, expires time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.global.LastModified, b.global.Expires
}
