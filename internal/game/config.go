package game

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zappabad/stocksim/internal/clock"
	marketservice "github.com/zappabad/stocksim/internal/market/service"
	notifyservice "github.com/zappabad/stocksim/internal/notify/service"
	"github.com/zappabad/stocksim/internal/simulation"
	"github.com/zappabad/stocksim/internal/snapshot"
	"github.com/zappabad/stocksim/internal/trade"
)

// Config holds configuration for the game.
type Config struct {
	Market      marketservice.Config `yaml:"market"`
	Trade       trade.Config         `yaml:"trade"`
	Notify      notifyservice.Config `yaml:"notify"`
	Persistence PersistenceConfig    `yaml:"persistence"`
	Clock       ClockConfig          `yaml:"clock"`
	Simulation  simulation.Config    `yaml:"simulation"`
	// LogFile receives logs while the terminal UI owns the screen.
	LogFile string `yaml:"log_file"`
}

// PersistenceConfig selects where saves go.
type PersistenceConfig struct {
	// Format is one of csv, json, yaml or sqlite.
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// ClockConfig holds configuration for game time.
type ClockConfig struct {
	// Start is the game time of a new game.
	Start time.Time `yaml:"start"`
	// TickInterval is the real time between clock advances in the UI.
	TickInterval time.Duration `yaml:"tick_interval"`
	// MinutesPerTick is the game time covered by one advance.
	MinutesPerTick int `yaml:"minutes_per_tick"`
}

func (c ClockConfig) runnerConfig() clock.RunnerConfig {
	return clock.RunnerConfig{TickInterval: c.TickInterval, MinutesPerTick: c.MinutesPerTick}
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	runner := clock.DefaultRunnerConfig()
	return Config{
		Market: marketservice.DefaultConfig(),
		Trade:  trade.DefaultConfig(),
		Notify: notifyservice.DefaultConfig(),
		Persistence: PersistenceConfig{
			Format: string(snapshot.FormatJSON),
			Path:   "stocksim.json",
		},
		Clock: ClockConfig{
			Start:          time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
			TickInterval:   runner.TickInterval,
			MinutesPerTick: runner.MinutesPerTick,
		},
		Simulation: simulation.DefaultConfig(),
		LogFile:    "stocksim.log",
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", marketservice.ErrInvalidConfig, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if _, err := snapshot.ParseFormat(c.Persistence.Format); err != nil {
		return fmt.Errorf("%w: persistence: %v", marketservice.ErrInvalidConfig, err)
	}
	if c.Persistence.Path == "" {
		return fmt.Errorf("%w: persistence path is empty", marketservice.ErrInvalidConfig)
	}
	if c.Trade.StartingFunds < 0 || c.Trade.ExternalBalance < 0 {
		return fmt.Errorf("%w: negative starting cash", marketservice.ErrInvalidConfig)
	}
	if c.Clock.TickInterval < 0 || c.Clock.MinutesPerTick < 0 {
		return fmt.Errorf("%w: negative clock settings", marketservice.ErrInvalidConfig)
	}
	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("%w: notify: %v", marketservice.ErrInvalidConfig, err)
	}
	if c.Simulation.Days < 1 {
		return fmt.Errorf("%w: simulation days %d", marketservice.ErrInvalidConfig, c.Simulation.Days)
	}
	return nil
}

// Format returns the parsed persistence format. Call after Validate.
func (c Config) Format() snapshot.Format {
	f, _ := snapshot.ParseFormat(c.Persistence.Format)
	return f
}
