package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zappabad/stocksim/internal/snapshot"
)

func exportCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the saved market to a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFlag(format)
			if err != nil {
				return err
			}

			g, err := openGame(cmd)
			if err != nil {
				return err
			}
			defer g.Close()

			recs, err := g.Export()
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			if err := codec.Encode(f, recs); err != nil {
				return err
			}
			log.Info().Int("records", len(recs)).Str("path", out).Msg("snapshot exported")
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Snapshot format: csv, json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "snapshot.json", "Output file")
	return cmd
}

func importCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the saved game with a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFlag(format)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			recs, err := codec.Decode(f)
			if err != nil {
				return err
			}

			g, err := openGame(cmd)
			if err != nil {
				return err
			}
			defer g.Close()

			if err := g.Import(recs); err != nil {
				return err
			}
			if err := g.Save(cmd.Context()); err != nil {
				return err
			}
			log.Info().Int("records", len(recs)).Time("clock", g.Now()).Msg("snapshot imported")
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Snapshot format: csv, json or yaml")
	return cmd
}

func codecFlag(name string) (snapshot.Codec, error) {
	f, err := snapshot.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return snapshot.CodecFor(f)
}
