package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func simulateCmd() *cobra.Command {
	var (
		days int
		fork bool
		out  string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a copy of the market forward and print daily closes as CSV",
		Long: `Run a copy of the saved market forward without changing the game.

Example:
  stocksim simulate --days 90 --out closes.csv
  stocksim simulate --fork`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := openGame(cmd)
			if err != nil {
				return err
			}
			defer g.Close()

			simCfg := g.Config().Simulation
			if cmd.Flags().Changed("days") {
				simCfg.Days = days
			}
			if cmd.Flags().Changed("fork") {
				simCfg.ForkRandom = fork
			}

			res, err := g.Simulate(simCfg)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := res.WriteCSV(w); err != nil {
				return err
			}

			// the shared stream moved on, keep it
			if !simCfg.ForkRandom {
				if err := g.Save(cmd.Context()); err != nil {
					return err
				}
			}
			log.Info().
				Int("sessions", res.Sessions()).
				Str("worth", res.Worth.StringFixed(2)).
				Msg("simulation finished")
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 30, "Calendar days to run")
	cmd.Flags().BoolVar(&fork, "fork", false, "Use a private copy of the random stream")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write CSV here instead of stdout")
	return cmd
}
