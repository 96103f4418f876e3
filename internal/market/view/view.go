package view

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/market"
)

// Quote is a point-in-time copy of one stock's visible state.
type Quote struct {
	ID         market.StockID
	Name       string
	Symbol     string
	Volatility decimal.Decimal
	Price      decimal.Decimal
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Change     decimal.Decimal
	// PrevClose is the last recorded closing price, if any.
	PrevClose decimal.NullDecimal
	Trending  bool
}

// QuoteOf builds a Quote from s.
func QuoteOf(s *market.Stock) Quote {
	q := Quote{
		ID:         s.ID,
		Name:       s.Name,
		Symbol:     s.Symbol,
		Volatility: s.Volatility,
		Price:      s.Price,
		Open:       s.OpeningPrice,
		High:       s.HighPrice,
		Low:        s.LowPrice,
		Change:     s.ChangePercent(),
		Trending:   s.HasTrend(),
	}
	h := s.History()
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Close.Valid {
			q.PrevClose = h[i].Close
			break
		}
	}
	return q
}

// MarketSnapshot is a point-in-time snapshot of all stocks.
type MarketSnapshot struct {
	Time     time.Time
	Open     bool
	Quotes   []Quote
	BySymbol map[string]int
}

// Quote looks up a stock by symbol.
func (s MarketSnapshot) Quote(symbol string) (Quote, bool) {
	i, ok := s.BySymbol[symbol]
	if !ok {
		return Quote{}, false
	}
	return s.Quotes[i], true
}

// MarketView maintains the read side of the market: the latest quotes and a
// minute price tape per stock.
type MarketView struct {
	mu       sync.RWMutex
	tapeSize int
	snap     MarketSnapshot
	tapes    map[market.StockID]*PriceTape
}

// NewMarketView creates a new MarketView keeping tapeSize minutes per stock.
func NewMarketView(tapeSize int) *MarketView {
	return &MarketView{
		tapeSize: tapeSize,
		tapes:    make(map[market.StockID]*PriceTape),
	}
}

// Apply records the state of stocks at now. When recordTape is set each
// price is appended to its stock's tape.
func (v *MarketView) Apply(now time.Time, open bool, stocks []*market.Stock, recordTape bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := MarketSnapshot{
		Time:     now,
		Open:     open,
		Quotes:   make([]Quote, 0, len(stocks)),
		BySymbol: make(map[string]int, len(stocks)),
	}
	for _, s := range stocks {
		snap.Quotes = append(snap.Quotes, QuoteOf(s))

		if !recordTape {
			continue
		}
		tape, ok := v.tapes[s.ID]
		if !ok {
			tape = NewPriceTape(v.tapeSize)
			v.tapes[s.ID] = tape
		}
		tape.Append(PricePoint{Time: now, Price: s.Price})
	}
	sort.SliceStable(snap.Quotes, func(i, j int) bool { return snap.Quotes[i].ID < snap.Quotes[j].ID })
	for i, q := range snap.Quotes {
		snap.BySymbol[q.Symbol] = i
	}
	v.snap = snap
}

// ResetTapes clears all intraday tapes, typically at session open.
func (v *MarketView) ResetTapes() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.tapes {
		t.Reset()
	}
}

// Snapshot returns a deep copy of the current market state.
func (v *MarketView) Snapshot() MarketSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := MarketSnapshot{
		Time:     v.snap.Time,
		Open:     v.snap.Open,
		Quotes:   append([]Quote(nil), v.snap.Quotes...),
		BySymbol: make(map[string]int, len(v.snap.BySymbol)),
	}
	for k, i := range v.snap.BySymbol {
		out.BySymbol[k] = i
	}
	return out
}

// Tape returns the last n minute prices of a stock.
func (v *MarketView) Tape(id market.StockID, n int) []PricePoint {
	v.mu.RLock()
	defer v.mu.RUnlock()

	t, ok := v.tapes[id]
	if !ok {
		return nil
	}
	return t.Last(n)
}
