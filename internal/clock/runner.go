package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// Advancer moves game time forward. Implementations must serialize their own
// state; the runner calls Advance from its own goroutine.
type Advancer interface {
	Advance(minutes int)
}

// RunnerConfig holds configuration for the real-time runner.
type RunnerConfig struct {
	// TickInterval is the real time between advances.
	TickInterval time.Duration
	// MinutesPerTick is the number of game minutes per advance.
	MinutesPerTick int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		TickInterval:   250 * time.Millisecond,
		MinutesPerTick: 1,
	}
}

// Runner advances game time on a real-time ticker.
type Runner struct {
	cfg    RunnerConfig
	target Advancer

	paused atomic.Bool
	ticks  atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRunner creates and starts a Runner.
func NewRunner(cfg RunnerConfig, target Advancer) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultRunnerConfig().TickInterval
	}
	if cfg.MinutesPerTick <= 0 {
		cfg.MinutesPerTick = DefaultRunnerConfig().MinutesPerTick
	}

	r := &Runner{
		cfg:    cfg,
		target: target,
		closed: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.closed:
			return
		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			r.target.Advance(r.cfg.MinutesPerTick)
			r.ticks.Add(1)
		}
	}
}

// SetPaused stops or resumes advancing without stopping the goroutine.
func (r *Runner) SetPaused(paused bool) {
	r.paused.Store(paused)
}

// Paused reports whether the runner is paused.
func (r *Runner) Paused() bool {
	return r.paused.Load()
}

// Ticks returns the number of advances performed.
func (r *Runner) Ticks() int64 {
	return r.ticks.Load()
}

// Close stops the runner and waits for its goroutine to exit.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
	r.wg.Wait()
}
