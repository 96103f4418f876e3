// Package game wires the clock, the market, the portfolio, notifications
// and persistence together and serializes access to them.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/clock"
	"github.com/zappabad/stocksim/internal/market"
	marketservice "github.com/zappabad/stocksim/internal/market/service"
	marketview "github.com/zappabad/stocksim/internal/market/view"
	"github.com/zappabad/stocksim/internal/notify"
	notifyservice "github.com/zappabad/stocksim/internal/notify/service"
	notifyview "github.com/zappabad/stocksim/internal/notify/view"
	"github.com/zappabad/stocksim/internal/rng"
	"github.com/zappabad/stocksim/internal/simulation"
	"github.com/zappabad/stocksim/internal/snapshot"
	"github.com/zappabad/stocksim/internal/snapshot/store"
	"github.com/zappabad/stocksim/internal/trade"
)

// PerformanceWindows are the day counts reported in a Portfolio summary.
var PerformanceWindows = []int{1, 7, 30}

// world is one clock, random stream, market and portfolio. Load builds a
// new world and swaps it in only when the import succeeds.
type world struct {
	clock  *clock.Clock
	rnd    *rng.Random
	market *marketservice.MarketService
	trade  *trade.Controller
}

func (w *world) bundle() snapshot.Bundle {
	return snapshot.Bundle{Market: w.market, Portfolio: w.trade, Clock: w.clock, Random: w.rnd}
}

// Game owns all the game subsystems and manages their lifecycle.
type Game struct {
	cfg Config
	log zerolog.Logger

	mu sync.Mutex
	w  *world

	notes  *notifyservice.NotificationService
	store  store.Store
	runner *clock.Runner
}

// New creates a Game. The market is empty until Bootstrap, Load or
// LoadOrBootstrap.
func New(cfg Config) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Format(), cfg.Persistence.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	g := &Game{
		cfg:   cfg,
		log:   log.With().Str("component", "game").Logger(),
		notes: notifyservice.NewNotificationService(cfg.Notify),
		store: st,
	}
	g.w = g.newWorld()
	return g, nil
}

func (g *Game) newWorld() *world {
	w := &world{
		clock: clock.New(g.cfg.Clock.Start),
		rnd:   rng.New(g.cfg.Market.Seed),
	}
	w.market = marketservice.NewMarketService(g.cfg.Market, w.rnd, w.clock)
	w.trade = trade.NewController(g.cfg.Trade, w.market, w.clock)
	w.market.AttachPortfolio(w.trade)
	w.market.SetNotifier(g.notes)
	w.trade.SetNotifier(g.notes)
	w.clock.Subscribe(w.market)
	return w
}

// Config returns the configuration the game was created with.
func (g *Game) Config() Config {
	return g.cfg
}

// Bootstrap creates a fresh universe from the configuration.
func (g *Game) Bootstrap() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.w.market.Initialized() {
		return marketservice.ErrAlreadyInitialized
	}
	g.w.market.SetReady(marketservice.ReadyClock)
	g.w.market.SetReady(marketservice.ReadyCatalog)
	g.w.market.SetReady(marketservice.ReadyPortfolio)
	g.log.Info().Time("start", g.w.clock.Now()).Msg("new game")
	return nil
}

// Save exports the current state to the store.
func (g *Game) Save(ctx context.Context) error {
	g.mu.Lock()
	recs, err := snapshot.Export(g.w.bundle())
	g.mu.Unlock()
	if err != nil {
		return err
	}

	if err := g.store.Save(ctx, recs); err != nil {
		g.log.Error().Err(err).Str("path", g.cfg.Persistence.Path).Msg("save failed")
		return fmt.Errorf("save: %w", err)
	}
	g.log.Info().Int("records", len(recs)).Str("path", g.cfg.Persistence.Path).Msg("game saved")
	return nil
}

// Load replaces the current state with the stored snapshot. On error the
// current state is kept.
func (g *Game) Load(ctx context.Context) error {
	recs, err := g.store.Load(ctx)
	if err != nil {
		return err
	}
	return g.Import(recs)
}

// Import replaces the current state with recs. On error the current state
// is kept.
func (g *Game) Import(recs []snapshot.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.newWorld()
	if err := snapshot.Import(w.bundle(), recs); err != nil {
		return err
	}
	g.w = w
	g.log.Info().Time("clock", w.clock.Now()).Str("session", w.market.State().String()).Msg("game loaded")
	return nil
}

// LoadOrBootstrap loads the stored snapshot, or starts a new game when
// there is none or it is corrupt. It reports whether a snapshot was loaded.
func (g *Game) LoadOrBootstrap(ctx context.Context) (bool, error) {
	err := g.Load(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNoSnapshot):
	case errors.Is(err, snapshot.ErrCorruptSnapshot):
		g.log.Warn().Err(err).Msg("discarding corrupt save")
	default:
		return false, err
	}
	return false, g.Bootstrap()
}

// Export returns the current state as records.
func (g *Game) Export() ([]snapshot.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return snapshot.Export(g.w.bundle())
}

// Advance implements clock.Advancer.
func (g *Game) Advance(minutes int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.w.clock.Advance(minutes)
}

// Start advances the clock in real time until Close.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runner == nil {
		g.runner = clock.NewRunner(g.cfg.Clock.runnerConfig(), g)
	}
}

// SetPaused pauses or resumes real-time advancing.
func (g *Game) SetPaused(paused bool) {
	g.mu.Lock()
	r := g.runner
	g.mu.Unlock()
	if r != nil {
		r.SetPaused(paused)
	}
}

// Paused reports whether real-time advancing is paused or not started.
func (g *Game) Paused() bool {
	g.mu.Lock()
	r := g.runner
	g.mu.Unlock()
	return r == nil || r.Paused()
}

// Simulate runs a copy of the current state forward.
func (g *Game) Simulate(cfg simulation.Config) (*simulation.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return simulation.Run(cfg, simulation.Source{
		Bundle: g.w.bundle(),
		Random: g.w.rnd,
		Market: g.cfg.Market,
		Trade:  g.cfg.Trade,
	})
}

// Close stops the runner, the notification service and the store.
func (g *Game) Close() error {
	g.mu.Lock()
	r := g.runner
	g.runner = nil
	g.mu.Unlock()

	// the runner's last Advance needs the lock
	if r != nil {
		r.Close()
	}
	g.notes.Close()
	return g.store.Close()
}

// Now returns the game time.
func (g *Game) Now() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.clock.Now()
}

// Session returns the session state.
func (g *Game) Session() marketservice.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.market.Session()
}

// Market returns the latest quotes.
func (g *Game) Market() marketview.MarketSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.market.Snapshot()
}

// Tape returns up to n minute prices of a stock, oldest first.
func (g *Game) Tape(id market.StockID, n int) []marketview.PricePoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.market.Tape(id, n)
}

// History returns the daily rows of a stock.
func (g *Game) History(id market.StockID) ([]market.HistoricalData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := g.w.market.Stock(id)
	if err != nil {
		return nil, err
	}
	return st.History(), nil
}

// Lookup resolves a symbol.
func (g *Game) Lookup(symbol string) (marketview.Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := g.w.market.StockBySymbol(symbol)
	if err != nil {
		return marketview.Quote{}, err
	}
	return marketview.QuoteOf(st), nil
}

// Notifications returns the latest n notifications.
func (g *Game) Notifications(n int) []notify.Notification {
	return g.notes.Latest(n)
}

// NotificationEvents streams notifications as they arrive.
func (g *Game) NotificationEvents() <-chan notifyview.NotificationEvent {
	return g.notes.Events()
}

// Position is a holding valued at the current price.
type Position struct {
	ID     market.StockID
	Symbol string
	Amount int64
	Price  decimal.Decimal
	Value  decimal.Decimal
}

// Portfolio summarizes the player's account.
type Portfolio struct {
	Funds    decimal.Decimal
	Balance  decimal.Decimal
	Invested decimal.Decimal
	Reserved decimal.Decimal
	Worth    decimal.Decimal
	// Performance maps a window in days to its percentage change. Windows
	// without history are missing.
	Performance map[int]decimal.Decimal
	Positions   []Position
	Orders      []trade.TradeOrder
	Trades      []trade.TradeHistory
}

// Portfolio returns the account summary.
func (g *Game) Portfolio() Portfolio {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.w.trade
	p := Portfolio{
		Funds:       c.AvailableFunds(),
		Balance:     c.Balance(),
		Invested:    c.TotalInvestedInStocks(),
		Reserved:    c.OutstandingBuyValue(),
		Worth:       c.PortfolioWorth(),
		Performance: make(map[int]decimal.Decimal),
		Orders:      c.PendingOrders(),
		Trades:      c.TradeHistory(),
	}
	for _, days := range PerformanceWindows {
		if pct, ok := c.Performance(days); ok {
			p.Performance[days] = pct
		}
	}
	for _, st := range g.w.market.Stocks() {
		n := c.Holding(st.ID)
		if n == 0 {
			continue
		}
		p.Positions = append(p.Positions, Position{
			ID:     st.ID,
			Symbol: st.Symbol,
			Amount: n,
			Price:  st.Price,
			Value:  market.RoundPrice(st.Price.Mul(decimal.NewFromInt(n))),
		})
	}
	return p
}

// InstantBuy buys at the current price.
func (g *Game) InstantBuy(id market.StockID, amount int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.trade.InstantBuy(id, amount)
}

// InstantSell sells at the current price.
func (g *Game) InstantSell(id market.StockID, amount int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.trade.InstantSell(id, amount)
}

// BuyLimit queues a buy order.
func (g *Game) BuyLimit(id market.StockID, limit decimal.Decimal, amount int64) (trade.TradeOrder, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.trade.BuyLimitOrder(id, limit, amount)
}

// SellLimit queues a sell order.
func (g *Game) SellLimit(id market.StockID, limit decimal.Decimal, amount int64) (trade.TradeOrder, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.trade.SellLimitOrder(id, limit, amount)
}

// CancelOrder cancels a pending order.
func (g *Game) CancelOrder(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.trade.CancelOrder(id)
}

// Deposit moves cash into the account.
func (g *Game) Deposit(amount decimal.Decimal) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.trade.Deposit(amount)
}

// Withdraw moves cash out of the account.
func (g *Game) Withdraw(amount decimal.Decimal) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.w.trade.Withdraw(amount)
}
