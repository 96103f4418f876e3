// Package simulation runs an in-memory copy of the market forward in time
// without touching the live game.
package simulation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/clock"
	"github.com/zappabad/stocksim/internal/market"
	marketservice "github.com/zappabad/stocksim/internal/market/service"
	"github.com/zappabad/stocksim/internal/rng"
	"github.com/zappabad/stocksim/internal/snapshot"
	"github.com/zappabad/stocksim/internal/trade"
)

var ErrInvalidDays = errors.New("simulation days must be positive")

// Config holds configuration for a forward simulation.
type Config struct {
	// Days is the number of calendar days to run.
	Days int `yaml:"days"`
	// ForkRandom gives the copy its own random stream. When false the copy
	// draws from the live stream, so a run moves live randomness forward.
	ForkRandom bool `yaml:"fork_random"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{Days: 30}
}

// Source is the live state a simulation starts from.
type Source struct {
	Bundle snapshot.Bundle
	// Random is the live stream, shared with or copied into the simulation.
	Random *rng.Random
	Market marketservice.Config
	Trade  trade.Config
}

// DailyClose is one closed session of one stock.
type DailyClose struct {
	Date   time.Time
	ID     market.StockID
	Symbol string
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
}

// Result is the outcome of a run.
type Result struct {
	Start  time.Time
	End    time.Time
	Closes []DailyClose
	// Worth is the simulated portfolio worth at End.
	Worth decimal.Decimal
}

// Run clones src through a snapshot and drives the clone for cfg.Days.
func Run(cfg Config, src Source) (*Result, error) {
	if cfg.Days <= 0 {
		return nil, ErrInvalidDays
	}

	recs, err := snapshot.Export(src.Bundle)
	if err != nil {
		return nil, fmt.Errorf("export live state: %w", err)
	}

	rnd := src.Random
	if cfg.ForkRandom {
		if rnd, err = src.Random.Clone(); err != nil {
			return nil, fmt.Errorf("fork random: %w", err)
		}
	}

	clk := clock.New(time.Time{})
	mkt := marketservice.NewMarketService(src.Market, rnd, clk)
	ctl := trade.NewController(src.Trade, mkt, clk)
	mkt.AttachPortfolio(ctl)

	if err := snapshot.Import(snapshot.Bundle{Market: mkt, Portfolio: ctl, Clock: clk, Random: rnd}, recs); err != nil {
		return nil, fmt.Errorf("import clone: %w", err)
	}

	rec := newRecorder(mkt)
	clk.Subscribe(mkt)
	clk.Subscribe(rec)

	res := &Result{Start: clk.Now()}
	clk.AdvanceDays(cfg.Days)
	res.End = clk.Now()
	res.Closes = rec.closes
	res.Worth = ctl.PortfolioWorth()

	log.Info().
		Int("days", cfg.Days).
		Bool("fork_random", cfg.ForkRandom).
		Int("closes", len(res.Closes)).
		Str("worth", res.Worth.StringFixed(market.PriceDecimals)).
		Msg("simulation finished")
	return res, nil
}

// recorder collects the daily row of every stock when a session closes, so
// retention in the clone does not lose early days.
type recorder struct {
	mkt    *marketservice.MarketService
	open   bool
	closes []DailyClose
}

func newRecorder(mkt *marketservice.MarketService) *recorder {
	return &recorder{mkt: mkt, open: mkt.IsOpen()}
}

func (r *recorder) OnMinuteElapsed(bool) {}

func (r *recorder) OnHourElapsed() {
	wasOpen := r.open
	r.open = r.mkt.IsOpen()
	if !wasOpen || r.open {
		return
	}

	for _, st := range r.mkt.Stocks() {
		rows := st.History()
		if len(rows) == 0 {
			continue
		}
		h := rows[len(rows)-1]
		c := DailyClose{Date: h.Date, ID: st.ID, Symbol: st.Symbol, Open: h.Open, High: h.High, Low: h.Low}
		if h.Close.Valid {
			c.Close = h.Close.Decimal
		}
		r.closes = append(r.closes, c)
	}
}

// WriteCSV writes the closes with a header row, one line per stock and day.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "stock_id", "symbol", "open", "high", "low", "close"}); err != nil {
		return err
	}
	for _, c := range r.Closes {
		row := []string{
			c.Date.Format(time.DateOnly),
			strconv.FormatInt(int64(c.ID), 10),
			c.Symbol,
			c.Open.StringFixed(market.PriceDecimals),
			c.High.StringFixed(market.PriceDecimals),
			c.Low.StringFixed(market.PriceDecimals),
			c.Close.StringFixed(market.PriceDecimals),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Sessions returns the number of distinct closed sessions.
func (r *Result) Sessions() int {
	seen := make(map[time.Time]bool)
	for _, c := range r.Closes {
		seen[c.Date] = true
	}
	return len(seen)
}
