package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zappabad/stocksim/internal/game"
	"github.com/zappabad/stocksim/tui"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Play in the terminal UI (default)",
		RunE:  runGame,
	}
}

func runGame(cmd *cobra.Command, args []string) error {
	cfg, err := game.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// the UI owns the terminal, so logs go to a file
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	setupLogging(logFile)

	g, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer g.Close()

	g.Start()
	log.Info().Time("clock", g.Now()).Msg("game started")

	p := tea.NewProgram(tui.NewModel(g), tea.WithAltScreen())
	_, runErr := p.Run()

	g.SetPaused(true)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := g.Save(ctx); err != nil {
		log.Error().Err(err).Msg("save on exit failed")
		if runErr == nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("terminal UI: %w", runErr)
	}
	return nil
}
