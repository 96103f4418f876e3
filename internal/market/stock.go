// Package market holds the instrument model: stocks, their trends and daily
// history, and the per-minute and per-hour price processes.
package market

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Random is the subset of the shared random stream used by the market.
type Random interface {
	Next(min, max int) int
	NextDouble() float64
	NextGaussian(mean, stdDev float64) float64
}

// flatTickChance is the probability that a stock without a running trend
// skips a minute entirely.
const flatTickChance = 0.10

// Stock is a simulated tradable instrument.
type Stock struct {
	ID         StockID
	Name       string
	Symbol     string
	Volatility decimal.Decimal

	Price        decimal.Decimal
	OpeningPrice decimal.Decimal
	Closing      SessionPrice
	HighPrice    decimal.Decimal
	LowPrice     decimal.Decimal

	trend     *Trend
	trendStep int

	history []HistoricalData
}

// NewStock creates a stock whose session is closed at price.
func NewStock(id StockID, name, symbol string, volatility, price decimal.Decimal) *Stock {
	price = RoundPrice(price)
	if price.LessThan(MinPrice) {
		price = MinPrice
	}
	return &Stock{
		ID:           id,
		Name:         name,
		Symbol:       symbol,
		Volatility:   volatility,
		Price:        price,
		OpeningPrice: price,
		Closing:      ClosedAt(price),
		HighPrice:    price,
		LowPrice:     price,
	}
}

// Trend returns the active trend and the number of steps already applied.
func (s *Stock) Trend() (Trend, int, bool) {
	if s.trend == nil {
		return Trend{}, 0, false
	}
	return *s.trend, s.trendStep, true
}

// HasTrend reports whether a trend is attached.
func (s *Stock) HasTrend() bool {
	return s.trend != nil
}

// SetTrend attaches t if no trend is active. It reports whether t was attached.
func (s *Stock) SetTrend(t Trend) bool {
	if s.trend != nil {
		return false
	}
	s.trend = &t
	s.trendStep = 0
	return true
}

// RestoreTrend attaches t at the given step, replacing any active trend.
func (s *Stock) RestoreTrend(t Trend, step int) {
	s.trend = &t
	s.trendStep = step
}

// ClearTrend removes the active trend.
func (s *Stock) ClearTrend() {
	s.trend = nil
	s.trendStep = 0
}

// UpdatePrice runs one minute of price movement. maxFluctuationPercent bounds
// the noise move of a stock with volatility 1. It reports whether the price
// was recomputed.
func (s *Stock) UpdatePrice(rnd Random, maxFluctuationPercent decimal.Decimal) bool {
	trending := s.trend != nil && s.trendStep < s.trend.Steps
	if !trending && rnd.NextDouble() < flatTickChance {
		return false
	}

	var candidate decimal.Decimal
	if trending {
		s.trendStep++
		factor := decimal.NewFromInt(int64(s.trendStep)).Div(decimal.NewFromInt(int64(s.trend.Steps)))
		span := s.trend.EndPrice.Sub(s.trend.StartPrice)
		candidate = s.trend.StartPrice.Add(span.Mul(factor))
		if s.trendStep >= s.trend.Steps {
			s.ClearTrend()
		}
	} else {
		if s.trend != nil {
			// exhausted trend carried over from a restore
			s.ClearTrend()
		}
		rng := s.Price.Mul(maxFluctuationPercent.Mul(s.Volatility)).Div(hundred)
		move := decimal.NewFromFloat(rnd.NextDouble()*2 - 1).Mul(rng)
		candidate = s.Price.Add(move)
	}

	candidate = RoundPrice(candidate)
	if !candidate.IsPositive() {
		candidate = MinPrice
		if s.trend != nil && s.trend.EndPrice.LessThanOrEqual(MinPrice) {
			s.ClearTrend()
		}
	}
	s.Price = candidate

	if s.Price.LessThan(s.LowPrice) {
		s.LowPrice = s.Price
	} else if s.Price.GreaterThan(s.HighPrice) {
		s.HighPrice = s.Price
	}
	return true
}

// Open starts a trading session.
func (s *Stock) Open() {
	if v, closed := s.Closing.Value(); closed {
		s.OpeningPrice = v
	} else {
		s.OpeningPrice = s.Price
	}
	s.Closing = OpenSession()
}

// Close ends the trading session on day, records the day's row, and resets
// the session extrema.
func (s *Stock) Close(day time.Time) HistoricalData {
	s.Closing = ClosedAt(s.Price)

	row := HistoricalData{
		Date:  day,
		Open:  s.OpeningPrice,
		Close: decimal.NewNullDecimal(s.Price),
		High:  s.HighPrice,
		Low:   s.LowPrice,
	}
	if s.trend != nil {
		row.TrendPercentage = s.trend.Percentage
	}
	s.AddHistory(row)

	s.HighPrice = s.Price
	s.LowPrice = s.Price
	return row
}

// ChangePercent returns the change since the opening price in percent,
// or zero when the opening price is zero.
func (s *Stock) ChangePercent() decimal.Decimal {
	if s.OpeningPrice.IsZero() {
		return decimal.Zero
	}
	return s.Price.Sub(s.OpeningPrice).Div(s.OpeningPrice).Mul(hundred).Round(2)
}

// History returns a copy of the daily rows, oldest first.
func (s *Stock) History() []HistoricalData {
	out := make([]HistoricalData, len(s.history))
	copy(out, s.history)
	return out
}

// AddHistory inserts row, replacing an existing row for the same day.
func (s *Stock) AddHistory(row HistoricalData) {
	for i := range s.history {
		if s.history[i].SameDay(row) {
			s.history[i] = row
			return
		}
	}
	s.history = append(s.history, row)
	sort.SliceStable(s.history, func(i, j int) bool {
		return s.history[i].Date.Before(s.history[j].Date)
	})
}

// SetHistory replaces all daily rows.
func (s *Stock) SetHistory(rows []HistoricalData) {
	s.history = nil
	for _, r := range rows {
		s.AddHistory(r)
	}
}

// PurgeHistory drops rows dated before cutoff and returns how many were removed.
func (s *Stock) PurgeHistory(cutoff time.Time) int {
	kept := s.history[:0]
	removed := 0
	for _, r := range s.history {
		if r.Date.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.history = kept
	return removed
}

// DailyChanges returns the day-over-day percentage changes of closing prices.
// Rows without a close, or following a zero close, are skipped.
func (s *Stock) DailyChanges() []float64 {
	var (
		out  []float64
		prev decimal.Decimal
		have bool
	)
	for _, r := range s.history {
		if !r.Close.Valid {
			continue
		}
		c := r.Close.Decimal
		if have && !prev.IsZero() {
			pct, _ := c.Sub(prev).Div(prev).Mul(hundred).Float64()
			out = append(out, pct)
		}
		prev = c
		have = true
	}
	return out
}
