package market

import (
	"math"

	"github.com/zappabad/stocksim/internal/rng"
)

// TrendConfig holds configuration for the hourly trend generator.
type TrendConfig struct {
	// Probability is the chance per stock per hour that a trend starts.
	Probability float64
	// MaxConcurrent caps the number of active trends. 0 means unlimited.
	MaxConcurrent int
	// MinHoursPersist and MaxHoursPersist bound the trend duration.
	MinHoursPersist int
	MaxHoursPersist int
	// AmplifyChance is the chance that a trend is multiplied by 2..4.
	AmplifyChance float64
	// FallbackStdDev is used when a stock has too little history.
	FallbackStdDev float64
}

// DefaultTrendConfig returns a TrendConfig with reasonable defaults.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		Probability:     0.05,
		MinHoursPersist: 1,
		MaxHoursPersist: 6,
		AmplifyChance:   0.07,
		FallbackStdDev:  0.3,
	}
}

const (
	minTrendMagnitude  = 2
	trendMagnitudeKick = 3
)

// TrendGenerator starts trends on stocks that have none.
type TrendGenerator struct {
	cfg TrendConfig
	rnd Random
}

// NewTrendGenerator creates a TrendGenerator drawing from rnd.
func NewTrendGenerator(cfg TrendConfig, rnd Random) *TrendGenerator {
	def := DefaultTrendConfig()
	if cfg.MinHoursPersist <= 0 {
		cfg.MinHoursPersist = def.MinHoursPersist
	}
	if cfg.MaxHoursPersist < cfg.MinHoursPersist {
		cfg.MaxHoursPersist = cfg.MinHoursPersist
	}
	if cfg.FallbackStdDev <= 0 {
		cfg.FallbackStdDev = def.FallbackStdDev
	}
	return &TrendGenerator{cfg: cfg, rnd: rnd}
}

// Run performs one hourly pass over stocks and returns the number of trends
// started. The concurrency cap is checked once, before the pass.
func (g *TrendGenerator) Run(stocks []*Stock) int {
	if g.cfg.MaxConcurrent > 0 && ActiveTrends(stocks) >= g.cfg.MaxConcurrent {
		return 0
	}

	started := 0
	for _, s := range stocks {
		if s.HasTrend() {
			continue
		}
		if g.rnd.NextDouble() >= g.cfg.Probability {
			continue
		}
		t, ok := g.Draw(s)
		if !ok {
			continue
		}
		if s.SetTrend(t) {
			started++
		}
	}
	return started
}

// Draw computes a trend for s from its own daily history. It reports false
// when the drawn percentage rounds to zero.
func (g *TrendGenerator) Draw(s *Stock) (Trend, bool) {
	mean, stdDev := 0.0, g.cfg.FallbackStdDev
	if len(s.history) >= 2 {
		changes := s.DailyChanges()
		if len(changes) > 0 {
			mean = rng.Mean(changes)
			stdDev = rng.StandardDeviation(changes)
		}
	}

	pct := int(math.RoundToEven(g.rnd.NextGaussian(mean, stdDev)))
	if pct == 0 {
		return Trend{}, false
	}
	if pct > -minTrendMagnitude && pct < minTrendMagnitude {
		if pct > 0 {
			pct += trendMagnitudeKick
		} else {
			pct -= trendMagnitudeKick
		}
	}
	if g.rnd.NextDouble() < g.cfg.AmplifyChance {
		pct *= g.rnd.Next(2, 4)
	}

	minSteps := 60 * g.cfg.MinHoursPersist
	maxSteps := 60 * g.cfg.MaxHoursPersist
	steps := minSteps
	if maxSteps > minSteps {
		steps = g.rnd.Next(minSteps, maxSteps-1)
	}

	return NewTrend(pct, s.Price, steps), true
}

// ActiveTrends counts stocks with an attached trend.
func ActiveTrends(stocks []*Stock) int {
	n := 0
	for _, s := range stocks {
		if s.HasTrend() {
			n++
		}
	}
	return n
}
