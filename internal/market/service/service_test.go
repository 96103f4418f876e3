package service

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stocksim/internal/clock"
	"github.com/zappabad/stocksim/internal/market"
	"github.com/zappabad/stocksim/internal/rng"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type fakePortfolio struct {
	settles   int
	snapshots []time.Time
	prunes    int
}

func (p *fakePortfolio) SettleOrders()               { p.settles++ }
func (p *fakePortfolio) SnapshotWorth(day time.Time) { p.snapshots = append(p.snapshots, day) }
func (p *fakePortfolio) Prune(time.Time)             { p.prunes++ }

// monday 2024-01-01
var monday = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func newTestMarket(t *testing.T, cfg Config, start time.Time) (*MarketService, *clock.Clock, *fakePortfolio) {
	t.Helper()
	require.NoError(t, cfg.Validate())

	clk := clock.New(start)
	svc := NewMarketService(cfg, rng.New(0), clk)
	p := &fakePortfolio{}
	svc.AttachPortfolio(p)
	clk.Subscribe(svc)

	svc.SetReady(ReadyClock)
	svc.SetReady(ReadyCatalog)
	svc.SetReady(ReadyPortfolio)
	require.True(t, svc.Initialized())
	return svc, clk, p
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Instruments = nil
	cfg.MinStocks = 4
	cfg.BackfillDays = 0
	return cfg
}

func TestBootstrapWaitsForAllSubsystems(t *testing.T) {
	clk := clock.New(monday)
	svc := NewMarketService(DefaultConfig(), rng.New(0), clk)

	svc.SetReady(ReadyClock)
	svc.SetReady(ReadyClock)
	svc.SetReady(ReadyCatalog)
	assert.False(t, svc.Initialized())
	assert.Empty(t, svc.Stocks())

	svc.SetReady(ReadyPortfolio)
	require.True(t, svc.Initialized())

	stocks := svc.Stocks()
	require.Len(t, stocks, DefaultConfig().MinStocks)

	seen := map[string]bool{}
	for i, st := range stocks {
		assert.Equal(t, market.StockID(i+1), st.ID)
		assert.LessOrEqual(t, len(st.Symbol), market.MaxSymbolLen)
		assert.False(t, seen[st.Symbol], "duplicate symbol %s", st.Symbol)
		seen[st.Symbol] = true
		assert.True(t, st.Volatility.IsPositive())
		assert.True(t, st.Volatility.LessThanOrEqual(decimal.NewFromInt(1)))
		assert.True(t, st.Price.GreaterThanOrEqual(market.MinPrice))
	}

	nrwy, err := svc.StockBySymbol("nrwy")
	require.NoError(t, err)
	assert.Equal(t, "Northgate Railways", nrwy.Name)

	_, err = svc.StockBySymbol("NOPE")
	assert.ErrorIs(t, err, ErrUnknownStock)
}

func TestFundamentalsPrice(t *testing.T) {
	cfg := smallConfig()
	cfg.Instruments = []Instrument{
		{Name: "Fixed", Symbol: "FIX", Volatility: 0.5, BasePrice: 100},
		{Name: "Derived", Symbol: "DRV", Volatility: 0.5, Revenue: 3000, Shares: 100, Multiple: 2},
	}
	svc, _, _ := newTestMarket(t, cfg, monday)

	fix, err := svc.StockBySymbol("FIX")
	require.NoError(t, err)
	assert.True(t, fix.Price.Equal(decimal.NewFromInt(100)))

	drv, err := svc.StockBySymbol("DRV")
	require.NoError(t, err)
	assert.True(t, drv.Price.Equal(decimal.NewFromInt(60)), "got %s", drv.Price)
}

func TestSameSeedSameMarket(t *testing.T) {
	a, clkA, _ := newTestMarket(t, DefaultConfig(), monday)
	b, clkB, _ := newTestMarket(t, DefaultConfig(), monday)

	clkA.AdvanceDays(2)
	clkB.AdvanceDays(2)

	sa, sb := a.Stocks(), b.Stocks()
	require.Equal(t, len(sa), len(sb))
	for i := range sa {
		assert.Equal(t, sa[i].Symbol, sb[i].Symbol)
		assert.True(t, sa[i].Price.Equal(sb[i].Price))
		assert.Equal(t, len(sa[i].History()), len(sb[i].History()))
	}
}

func TestSessionCycle(t *testing.T) {
	svc, clk, p := newTestMarket(t, smallConfig(), monday)
	st := svc.Stocks()[0]
	before := st.Price

	clk.Advance(59)
	assert.Equal(t, SessionClosed, svc.State())
	assert.True(t, st.Price.Equal(before))

	clk.Advance(1) // 09:00
	require.Equal(t, SessionOpen, svc.State())
	assert.Equal(t, []time.Time{clock.Day(monday)}, p.snapshots)
	assert.True(t, st.OpeningPrice.Equal(before))
	assert.True(t, st.Closing.IsOpen())
	assert.Equal(t, 1, p.settles)

	clk.Advance(8 * 60) // 17:00
	assert.Equal(t, SessionClosed, svc.State())
	assert.Equal(t, 480, p.settles)
	assert.Equal(t, 7, p.prunes)

	h := st.History()
	require.Len(t, h, 1)
	assert.Equal(t, clock.Day(monday), h[0].Date)
	assert.True(t, h[0].Close.Valid)
	assert.True(t, h[0].Close.Decimal.Equal(st.Price))
	assert.True(t, h[0].Open.Equal(before))
	assert.True(t, st.HighPrice.Equal(st.Price))
	assert.True(t, st.LowPrice.Equal(st.Price))

	closing, closed := st.Closing.Value()
	require.True(t, closed)

	// next day opens at the previous close
	clk.Advance(16 * 60)
	require.Equal(t, SessionOpen, svc.State())
	assert.True(t, st.OpeningPrice.Equal(closing))
	assert.Len(t, p.snapshots, 2)
}

func TestHourLogicIdempotent(t *testing.T) {
	svc, clk, p := newTestMarket(t, smallConfig(), monday)
	clk.Advance(60)
	require.True(t, svc.IsOpen())

	svc.OnHourElapsed()
	svc.OnHourElapsed()
	assert.Len(t, p.snapshots, 1)
	assert.True(t, svc.IsOpen())
}

func TestHourTickWithoutMinuteTick(t *testing.T) {
	svc, clk, p := newTestMarket(t, smallConfig(), monday)

	// the host may deliver the hour signal on its own
	clk.Set(monday.Add(2 * time.Hour))
	svc.OnHourElapsed()
	require.True(t, svc.IsOpen())
	assert.Len(t, p.snapshots, 1)

	clk.Set(monday.Add(9 * time.Hour))
	svc.OnHourElapsed()
	assert.False(t, svc.IsOpen())
	require.Len(t, svc.Stocks()[0].History(), 1)

	// one session per calendar day
	clk.Set(monday.Add(3 * time.Hour))
	svc.OnHourElapsed()
	assert.False(t, svc.IsOpen())
	assert.Len(t, p.snapshots, 1)
}

func TestClosedWeekdays(t *testing.T) {
	saturday := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	svc, clk, p := newTestMarket(t, smallConfig(), saturday)

	clk.AdvanceDays(2)
	assert.Empty(t, p.snapshots)
	assert.Equal(t, SessionClosed, svc.State())

	clk.Advance(10 * 60) // monday 10:00
	assert.True(t, svc.IsOpen())
}

func TestHistoryRetention(t *testing.T) {
	cfg := smallConfig()
	cfg.HistoryRetentionDays = 3
	svc, clk, _ := newTestMarket(t, cfg, monday)

	for day := 0; day < 12; day++ {
		clk.AdvanceDays(1)
		for _, st := range svc.Stocks() {
			assert.LessOrEqual(t, len(st.History()), cfg.HistoryRetentionDays+1)
		}
	}
	// friday 2024-01-12 kept back to tuesday 2024-01-09
	h := svc.Stocks()[0].History()
	require.Len(t, h, 4)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), h[0].Date)
}

func TestBackfill(t *testing.T) {
	cfg := smallConfig()
	cfg.BackfillDays = 10
	start := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newTestMarket(t, cfg, start)

	for _, st := range svc.Stocks() {
		h := st.History()
		// fri 5th, mon 8th..fri 12th
		require.Len(t, h, 6)
		for _, row := range h {
			assert.NotEqual(t, time.Saturday, row.Date.Weekday())
			assert.NotEqual(t, time.Sunday, row.Date.Weekday())
			require.True(t, row.Close.Valid)
			assert.True(t, row.Low.LessThanOrEqual(row.Close.Decimal))
			assert.True(t, row.High.GreaterThanOrEqual(row.Close.Decimal))
			assert.True(t, row.Low.GreaterThanOrEqual(market.MinPrice))
		}
		assert.True(t, st.Price.Equal(h[len(h)-1].Close.Decimal))
		for i := 1; i < len(h); i++ {
			assert.True(t, h[i].Open.Equal(h[i-1].Close.Decimal))
		}
	}
}

func TestRestore(t *testing.T) {
	svc, _, _ := newTestMarket(t, smallConfig(), monday)
	err := svc.Restore(nil, Session{})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	clk := clock.New(monday)
	fresh := NewMarketService(smallConfig(), rng.New(0), clk)
	b := market.NewStock(7, "Beta", "BETA", decimal.RequireFromString("0.4"), decimal.NewFromInt(12))
	a := market.NewStock(3, "Alpha", "ALPH", decimal.RequireFromString("0.4"), decimal.NewFromInt(8))
	day := clock.Day(monday)
	require.NoError(t, fresh.Restore([]*market.Stock{b, a}, Session{State: SessionOpen, SessionDay: day, LastOpenDay: day}))

	assert.True(t, fresh.Initialized())
	assert.True(t, fresh.IsOpen())
	stocks := fresh.Stocks()
	require.Len(t, stocks, 2)
	assert.Equal(t, market.StockID(3), stocks[0].ID)

	price, ok := fresh.Price(7)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(12)))
	_, ok = fresh.Price(99)
	assert.False(t, ok)

	// the latches are satisfied; no bootstrap happens afterwards
	fresh.SetReady(ReadyClock)
	assert.Len(t, fresh.Stocks(), 2)

	_, err = fresh.Quote(42)
	assert.True(t, errors.Is(err, ErrUnknownStock))

	dupe := NewMarketService(smallConfig(), rng.New(0), clk)
	assert.Error(t, dupe.Restore([]*market.Stock{a, a}, Session{}))
	assert.False(t, dupe.Initialized())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClosedWeekdays = []string{"Sat", "SUNDAY", " fri "}
	require.NoError(t, cfg.Validate())
	days, err := cfg.ClosedDays()
	require.NoError(t, err)
	assert.True(t, days[time.Saturday])
	assert.True(t, days[time.Sunday])
	assert.True(t, days[time.Friday])

	cfg.ClosedWeekdays = []string{"caturday"}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.OpeningHour, cfg.ClosingHour = 17, 9
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.HistoryRetentionDays = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestViewFollowsTicks(t *testing.T) {
	svc, clk, _ := newTestMarket(t, smallConfig(), monday)
	clk.Advance(70)

	snap := svc.Snapshot()
	assert.True(t, snap.Open)
	assert.Len(t, snap.Quotes, 4)
	assert.Equal(t, monday.Add(70*time.Minute), snap.Time)

	st := svc.Stocks()[0]
	tape := svc.Tape(st.ID, 100)
	require.Len(t, tape, 11)
	assert.True(t, tape[len(tape)-1].Price.Equal(st.Price))
}
