package service

import (
	"fmt"
	"time"

	"github.com/zappabad/stocksim/internal/notify"
)

// Config holds configuration for the notification service.
type Config struct {
	// History is how many notifications are kept for Latest.
	History int `yaml:"history"`
	// Buffer sizes the queue from publishers and the subscriber channel.
	// A full subscriber channel drops notifications; the history keeps them.
	Buffer int `yaml:"buffer"`
	// Muted lists kinds that are never recorded, e.g. [open, close].
	Muted []string `yaml:"muted"`
	// MergeWindow is the game time within which fills of one symbol collapse
	// into a single entry. Zero disables merging.
	MergeWindow time.Duration `yaml:"merge_window"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		History:     100,
		Buffer:      256,
		MergeWindow: 5 * time.Minute,
	}
}

// Validate reports unknown muted kinds and a negative merge window.
func (c Config) Validate() error {
	if _, err := c.mutedKinds(); err != nil {
		return err
	}
	if c.MergeWindow < 0 {
		return fmt.Errorf("negative merge window %s", c.MergeWindow)
	}
	return nil
}

func (c Config) mutedKinds() (map[notify.Kind]bool, error) {
	muted := make(map[notify.Kind]bool, len(c.Muted))
	for _, name := range c.Muted {
		k, err := notify.ParseKind(name)
		if err != nil {
			return nil, err
		}
		muted[k] = true
	}
	return muted, nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.History <= 0 {
		c.History = def.History
	}
	if c.Buffer <= 0 {
		c.Buffer = def.Buffer
	}
	return c
}
