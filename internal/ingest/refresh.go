package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"everterm/internal/esi"
	"everterm/internal/market"
	"everterm/internal/universe"
)

const errorRetryDelay = 15 * time.Second

// refreshRegion polls one region at the cadence its Expires headers dictate.
// There is never more than one in-flight fetch per region: the loop fetches,
// hands the snapshot to the applicator (blocking on back-pressure), then
// sleeps until just past the advertised expiry. Fetch failures retry after a
// fixed delay. The loop exits when ctx is cancelled.
func refreshRegion(
	ctx context.Context,
	client *esi.Client,
	region universe.Region,
	snapshots chan<- *market.RegionSnapshot,
	bus *Broadcaster,
) {
	for {
		snap, err := market.FetchRegion(ctx, client, region)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("region", region.Name).Msg("region refresh failed")
			if sleepCtx(ctx, errorRetryDelay) != nil {
				return
			}
			continue
		}

		// Sleep until one second past expiry; a stale Expires clamps to an
		// immediate refetch.
		sleepFor := time.Until(snap.Expires.Add(time.Second))
		if sleepFor < 0 {
			sleepFor = 0
		}

		select {
		case snapshots <- snap:
		case <-ctx.Done():
			return
		}

		bus.Publish(RefreshEvent{RegionID: region.ID, Expires: snap.Expires})

		log.Debug().
			Str("region", region.Name).
			Dur("sleep", sleepFor).
			Msg("region refreshed")

		if sleepCtx(ctx, sleepFor) != nil {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
