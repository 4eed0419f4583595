package market

import "everterm/internal/universe"

// MarketDiff is the order-level difference between two snapshots of the same
// region, split per item type. Modified carries the new value of each changed
// order. Keys may be absent: New is created lazily, Modified and Removed only
// exist for types present in both snapshots (Removed also for types that
// vanished entirely). Consumers must tolerate missing keys.
type MarketDiff struct {
	New      map[universe.TypeID][]Order
	Modified map[universe.TypeID][]Order
	Removed  map[universe.TypeID][]uint64
}

// Delta computes the diff that transforms prev into next. It is a pure
// function: neither market is mutated, and applying the result to prev
// (remove Removed ids, insert New and Modified orders) reproduces next
// exactly under structural order equality.
func Delta(prev, next *Market) MarketDiff {
	diff := MarketDiff{
		New:      make(map[universe.TypeID][]Order),
		Modified: make(map[universe.TypeID][]Order),
		Removed:  make(map[universe.TypeID][]uint64),
	}

	for typeID, prevBook := range prev.Items {
		nextBook, ok := next.Items[typeID]
		if !ok {
			// Entire type vanished: every previous order is removed.
			ids := make([]uint64, 0, len(prevBook.Orders))
			for id := range prevBook.Orders {
				ids = append(ids, id)
			}
			diff.Removed[typeID] = ids
			continue
		}

		modified := []Order{}
		removed := []uint64{}
		for id, old := range prevBook.Orders {
			current, ok := nextBook.Orders[id]
			switch {
			case !ok:
				removed = append(removed, id)
			case !current.Equal(old):
				modified = append(modified, current)
			}
		}
		diff.Modified[typeID] = modified
		diff.Removed[typeID] = removed

		for id, order := range nextBook.Orders {
			if _, ok := prevBook.Orders[id]; !ok {
				diff.New[typeID] = append(diff.New[typeID], order)
			}
		}
	}

	for typeID, nextBook := range next.Items {
		if _, ok := prev.Items[typeID]; ok {
			continue
		}
		orders := make([]Order, 0, len(nextBook.Orders))
		for _, order := range nextBook.Orders {
			orders = append(orders, order)
		}
		if len(orders) > 0 {
			diff.New[typeID] = orders
		}
	}

	return diff
}
