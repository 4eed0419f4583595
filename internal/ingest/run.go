package ingest

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"everterm/internal/esi"
	"everterm/internal/market"
	"everterm/internal/universe"
)

// snapshotBuffer bounds the applicator channel. A full channel back-pressures
// refresh loops, throttling fetching to what the applicator can absorb.
const snapshotBuffer = 32

// Run starts one refresh loop per region and consumes their snapshots
// serially into book, publishing refresh events on bus. It blocks until ctx
// is cancelled and every loop has exited and the channel has drained.
//
// The serial applicator makes the book state a function of snapshot arrival
// order and keeps the per-region previous-snapshot map single-writer.
func Run(
	ctx context.Context,
	client *esi.Client,
	regions []universe.Region,
	book *Book,
	bus *Broadcaster,
) {
	snapshots := make(chan *market.RegionSnapshot, snapshotBuffer)

	var wg sync.WaitGroup
	for _, region := range regions {
		region := region
		wg.Add(1)
		go func() {
			defer wg.Done()
			refreshRegion(ctx, client, region, snapshots, bus)
		}()
	}

	go func() {
		wg.Wait()
		close(snapshots)
	}()

	log.Info().Int("regions", len(regions)).Msg("ingest started")

	for snap := range snapshots {
		book.Apply(snap)
	}

	log.Info().Msg("ingest stopped")
}
