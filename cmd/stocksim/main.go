// stocksim - a single-player stock market simulation
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zappabad/stocksim/internal/game"
)

var (
	version    = "0.1.0"
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stocksim",
		Short: "Stock market simulation",
		Long: `stocksim runs a simulated stock market on a game clock. Trade with
instant and limit orders, save and restore the whole market, or run the
market forward without touching your game.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(os.Stderr)
		},
		RunE: runGame,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "stocksim.yaml", "Config file (defaults are used when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stocksim version %s\n", version)
		},
	}
}

func setupLogging(w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
}

// openGame loads the config and restores the saved game, bootstrapping a
// new market when there is none.
func openGame(cmd *cobra.Command) (*game.Game, error) {
	cfg, err := game.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	g, err := game.New(cfg)
	if err != nil {
		return nil, err
	}
	restored, err := g.LoadOrBootstrap(cmd.Context())
	if err != nil {
		g.Close()
		return nil, err
	}
	log.Debug().Bool("restored", restored).Time("clock", g.Now()).Msg("game opened")
	return g, nil
}
