package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"everterm/internal/config"
	"everterm/internal/esi"
	"everterm/internal/ingest"
	"everterm/internal/universe"
)

var fetchConcurrency int

// fetchCmd runs the data-fetcher daemon: region catalog, one refresh loop
// per region, the serial book applicator, and the internal data server.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run the market data fetcher and internal data server",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", esi.FetcherConcurrency, "Maximum in-flight ESI requests")
}

func runFetch(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	raiseFdLimit()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := esi.NewClient("data_fetcher", runtime.GOOS, fetchConcurrency, cfg.CacheDir)

	regions := universe.NewRegions(client, cfg.RegionsCachePath())
	if err := regions.LoadFromCache(); err != nil {
		log.Info().Err(err).Msg("region cache unavailable, fetching from ESI")
		if err := regions.FetchAll(ctx); err != nil {
			return fmt.Errorf("build region catalog: %w", err)
		}
	}
	log.Info().Int("regions", regions.Len()).Msg("region catalog ready")

	book := ingest.NewBook()
	bus := &ingest.Broadcaster{}
	tracker := ingest.NewTracker(regions.All())
	go tracker.Listen(bus.Subscribe())

	go ingest.Run(ctx, client, regions.All(), book, bus)

	server := ingest.NewServer(book, tracker)
	return server.ListenAndServe(cfg.Port)
}
