package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"everterm/internal/backend"
	"everterm/internal/config"
	"everterm/internal/db"
	"everterm/internal/esi"
	"everterm/internal/universe"
)

// serveCmd runs the public backend.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the public market-data backend",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	client := esi.NewClient("backend", runtime.GOOS, esi.DefaultConcurrency, cfg.CacheDir)

	database, err := db.Open(cfg.StationDBPath())
	if err != nil {
		return fmt.Errorf("open station cache: %w", err)
	}
	defer database.Close()

	stations := universe.NewStations(client, database)

	srv := backend.NewServer(cfg, client, stations)
	if err := srv.LoadPublicStructures(context.Background()); err != nil {
		return fmt.Errorf("load public structures: %w", err)
	}

	return srv.ListenAndServe()
}
