package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var debugLogging bool

// rootCmd is the base command for the everterm CLI.
var rootCmd = &cobra.Command{
	Use:   "everterm",
	Short: "EVE regional market mirror",
	Long: `everterm continuously mirrors EVE Online regional market-order data
into an in-process book and exposes it over HTTP.

Run 'everterm fetch' for the data-fetcher daemon or 'everterm serve' for the
public backend.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debugLogging {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
