package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zappabad/stocksim/internal/market"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid market config")

// Instrument describes a stock created at bootstrap. The initial price is
// BasePrice when set, otherwise derived from the fundamentals.
type Instrument struct {
	Name       string  `yaml:"name"`
	Symbol     string  `yaml:"symbol,omitempty"`
	Volatility float64 `yaml:"volatility"`
	BasePrice  float64 `yaml:"base_price,omitempty"`
	// Revenue and Shares are in millions. Multiple is the price-to-sales
	// ratio applied to revenue per share.
	Revenue  float64 `yaml:"revenue,omitempty"`
	Shares   float64 `yaml:"shares,omitempty"`
	Multiple float64 `yaml:"multiple,omitempty"`
}

// Config holds configuration for the market service.
type Config struct {
	// Seed initializes the shared random stream at bootstrap.
	Seed int64 `yaml:"seed"`
	// OpeningHour and ClosingHour bound the session: open while
	// OpeningHour <= hour < ClosingHour.
	OpeningHour int `yaml:"opening_hour"`
	ClosingHour int `yaml:"closing_hour"`
	// ClosedWeekdays lists days without a session ("saturday", "sun", ...).
	ClosedWeekdays []string `yaml:"closed_weekdays"`

	MaxFluctuationPercent float64 `yaml:"max_fluctuation_percent"`
	TrendProbability      float64 `yaml:"trend_probability"`
	// MaxConcurrentTrends caps active trends market-wide. 0 means unlimited.
	MaxConcurrentTrends int `yaml:"max_concurrent_trends"`
	TrendMinHours       int `yaml:"trend_min_hours"`
	TrendMaxHours       int `yaml:"trend_max_hours"`

	HistoryRetentionDays   int     `yaml:"history_retention_days"`
	BackfillDays           int     `yaml:"backfill_days"`
	BackfillMaxMovePercent float64 `yaml:"backfill_max_move_percent"`

	// MinStocks is the universe size reached with procedural stocks.
	MinStocks   int          `yaml:"min_stocks"`
	Instruments []Instrument `yaml:"instruments"`
	// MinPrice and MaxPrice bound the initial price of procedural stocks.
	MinPrice float64 `yaml:"min_price"`
	MaxPrice float64 `yaml:"max_price"`

	// TapeSize is the number of minute prices kept per stock for the view.
	TapeSize int `yaml:"tape_size"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Seed:                   1,
		OpeningHour:            9,
		ClosingHour:            17,
		ClosedWeekdays:         []string{"saturday", "sunday"},
		MaxFluctuationPercent:  1.0,
		TrendProbability:       0.05,
		TrendMinHours:          1,
		TrendMaxHours:          6,
		HistoryRetentionDays:   30,
		BackfillDays:           30,
		BackfillMaxMovePercent: 3,
		MinStocks:              12,
		Instruments:            DefaultInstruments(),
		MinPrice:               10,
		MaxPrice:               250,
		TapeSize:               480,
	}
}

// DefaultInstruments returns the iconic stocks present in every new market.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Name: "Northgate Railways", Symbol: "NRWY", Volatility: 0.3, Revenue: 4200, Shares: 120, Multiple: 2},
		{Name: "Harbor Shipping", Symbol: "HBSP", Volatility: 0.45, Revenue: 1800, Shares: 90, Multiple: 1.5},
		{Name: "Summit Power", Symbol: "SMPW", Volatility: 0.25, Revenue: 6300, Shares: 300, Multiple: 2.5},
		{Name: "Copperline Mining", Symbol: "CPLM", Volatility: 0.7, Revenue: 950, Shares: 60, Multiple: 3},
		{Name: "Bright Foods", Symbol: "BRFD", Volatility: 0.2, BasePrice: 42.5},
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday parses a weekday name or its three-letter abbreviation,
// case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[key]; ok {
		return wd, nil
	}
	if len(key) == 3 {
		for name, wd := range weekdayNames {
			if strings.HasPrefix(name, key) {
				return wd, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidConfig, s)
}

// ClosedDays parses ClosedWeekdays.
func (c Config) ClosedDays() (map[time.Weekday]bool, error) {
	out := make(map[time.Weekday]bool, len(c.ClosedWeekdays))
	for _, s := range c.ClosedWeekdays {
		wd, err := ParseWeekday(s)
		if err != nil {
			return nil, err
		}
		out[wd] = true
	}
	return out, nil
}

// Validate reports configuration errors. They are fatal at startup.
func (c Config) Validate() error {
	if _, err := c.ClosedDays(); err != nil {
		return err
	}
	if c.OpeningHour < 0 || c.ClosingHour > 23 || c.OpeningHour >= c.ClosingHour {
		return fmt.Errorf("%w: session hours %d..%d", ErrInvalidConfig, c.OpeningHour, c.ClosingHour)
	}
	if c.HistoryRetentionDays < 1 {
		return fmt.Errorf("%w: history retention must be at least one day", ErrInvalidConfig)
	}
	if c.MinPrice <= 0 || c.MaxPrice < c.MinPrice {
		return fmt.Errorf("%w: price range %v..%v", ErrInvalidConfig, c.MinPrice, c.MaxPrice)
	}
	if c.TrendMinHours < 1 || c.TrendMaxHours < c.TrendMinHours {
		return fmt.Errorf("%w: trend hours %d..%d", ErrInvalidConfig, c.TrendMinHours, c.TrendMaxHours)
	}
	for _, in := range c.Instruments {
		if in.Name == "" {
			return fmt.Errorf("%w: instrument without name", ErrInvalidConfig)
		}
		if in.Volatility < 0 || in.Volatility > 1 {
			return fmt.Errorf("%w: volatility of %s out of [0,1]", ErrInvalidConfig, in.Name)
		}
		if len(in.Symbol) > market.MaxSymbolLen {
			return fmt.Errorf("%w: symbol %s longer than %d", ErrInvalidConfig, in.Symbol, market.MaxSymbolLen)
		}
	}
	return nil
}

func (c Config) trendConfig() market.TrendConfig {
	tc := market.DefaultTrendConfig()
	tc.Probability = c.TrendProbability
	tc.MaxConcurrent = c.MaxConcurrentTrends
	tc.MinHoursPersist = c.TrendMinHours
	tc.MaxHoursPersist = c.TrendMaxHours
	return tc
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.OpeningHour == 0 && c.ClosingHour == 0 {
		c.OpeningHour = def.OpeningHour
		c.ClosingHour = def.ClosingHour
	}
	if c.MaxFluctuationPercent <= 0 {
		c.MaxFluctuationPercent = def.MaxFluctuationPercent
	}
	if c.TrendMinHours <= 0 {
		c.TrendMinHours = def.TrendMinHours
	}
	if c.TrendMaxHours <= 0 {
		c.TrendMaxHours = def.TrendMaxHours
	}
	if c.HistoryRetentionDays <= 0 {
		c.HistoryRetentionDays = def.HistoryRetentionDays
	}
	if c.BackfillMaxMovePercent <= 0 {
		c.BackfillMaxMovePercent = def.BackfillMaxMovePercent
	}
	if c.MinPrice <= 0 {
		c.MinPrice = def.MinPrice
	}
	if c.MaxPrice <= 0 {
		c.MaxPrice = def.MaxPrice
	}
	if c.TapeSize <= 0 {
		c.TapeSize = def.TapeSize
	}
	return c
}
