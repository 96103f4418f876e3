package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/clock"
	"github.com/zappabad/stocksim/internal/market"
	marketview "github.com/zappabad/stocksim/internal/market/view"
	"github.com/zappabad/stocksim/internal/notify"
	"github.com/zappabad/stocksim/internal/rng"
)

var (
	ErrUnknownStock       = errors.New("unknown stock")
	ErrNotInitialized     = errors.New("market not initialized")
	ErrAlreadyInitialized = errors.New("market already initialized")
)

// SessionState is the trading session state machine.
type SessionState int

const (
	SessionClosed SessionState = iota
	SessionOpening
	SessionOpen
	SessionClosing
)

func (s SessionState) String() string {
	switch s {
	case SessionOpening:
		return "opening"
	case SessionOpen:
		return "open"
	case SessionClosing:
		return "closing"
	default:
		return "closed"
	}
}

// ParseSessionState parses the String form of a SessionState.
func ParseSessionState(s string) (SessionState, error) {
	for _, st := range []SessionState{SessionClosed, SessionOpening, SessionOpen, SessionClosing} {
		if st.String() == s {
			return st, nil
		}
	}
	return SessionClosed, fmt.Errorf("unknown session state %q", s)
}

// Subsystem names one of the collaborators that must report ready before
// the market bootstraps.
type Subsystem int

const (
	ReadyClock Subsystem = iota
	ReadyCatalog
	ReadyPortfolio

	subsystemCount
)

// Portfolio is the trading side driven by the market.
type Portfolio interface {
	// SettleOrders runs once after every price recalculation.
	SettleOrders()
	// SnapshotWorth records the portfolio worth for day at session open.
	SnapshotWorth(day time.Time)
	// Prune drops log rows past their retention windows.
	Prune(now time.Time)
}

// Session is the persisted part of the session state machine.
type Session struct {
	State       SessionState
	SessionDay  time.Time
	LastOpenDay time.Time
}

// MarketService owns the stock universe and drives it from clock signals.
type MarketService struct {
	cfg        Config
	closedDays map[time.Weekday]bool
	log        zerolog.Logger

	rnd    *rng.Random
	clock  clock.TimeSource
	trends *market.TrendGenerator
	names  *market.NameGenerator

	stocks []*market.Stock
	byID   map[market.StockID]*market.Stock
	nextID market.StockID

	session     SessionState
	sessionDay  time.Time
	lastOpenDay time.Time

	ready       [subsystemCount]bool
	initialized bool

	portfolio Portfolio
	notifier  notify.Notifier
	mview     *marketview.MarketView
}

// NewMarketService creates a MarketService. The configuration must have
// passed Validate; an unparsable weekday list is treated as empty.
func NewMarketService(cfg Config, rnd *rng.Random, clk clock.TimeSource) *MarketService {
	cfg = cfg.withDefaults()
	closed, err := cfg.ClosedDays()
	if err != nil {
		closed = map[time.Weekday]bool{}
	}

	s := &MarketService{
		cfg:        cfg,
		closedDays: closed,
		log:        log.With().Str("component", "market").Logger(),
		rnd:        rnd,
		clock:      clk,
		trends:     market.NewTrendGenerator(cfg.trendConfig(), rnd),
		names:      market.NewNameGenerator(rnd),
		byID:       make(map[market.StockID]*market.Stock),
		nextID:     1,
		notifier:   notify.Discard,
		mview:      marketview.NewMarketView(cfg.TapeSize),
	}
	return s
}

// AttachPortfolio connects the trading side.
func (s *MarketService) AttachPortfolio(p Portfolio) {
	s.portfolio = p
}

// SetNotifier sets where session notices go.
func (s *MarketService) SetNotifier(n notify.Notifier) {
	if n == nil {
		n = notify.Discard
	}
	s.notifier = n
}

// Config returns the effective configuration.
func (s *MarketService) Config() Config {
	return s.cfg
}

// SetReady latches sub as ready. Once every subsystem is ready the market
// bootstraps a fresh universe.
func (s *MarketService) SetReady(sub Subsystem) {
	if sub < 0 || sub >= subsystemCount {
		return
	}
	s.ready[sub] = true
	if s.allReady() && !s.initialized {
		s.initialize()
	}
}

func (s *MarketService) allReady() bool {
	for _, r := range s.ready {
		if !r {
			return false
		}
	}
	return true
}

// Initialized reports whether the universe exists.
func (s *MarketService) Initialized() bool {
	return s.initialized
}

func (s *MarketService) initialize() {
	s.rnd.Init(s.cfg.Seed)

	for _, in := range s.cfg.Instruments {
		s.addInstrument(in)
	}
	for len(s.stocks) < s.cfg.MinStocks {
		s.addInstrument(Instrument{})
	}

	backfilled := 0
	for _, st := range s.stocks {
		backfilled += s.backfill(st)
	}

	s.initialized = true
	s.mview.Apply(s.clock.Now(), false, s.stocks, false)

	s.log.Info().
		Int("stocks", len(s.stocks)).
		Int("history_rows", backfilled).
		Int64("seed", s.cfg.Seed).
		Msg("market initialized")
}

func (s *MarketService) addInstrument(in Instrument) *market.Stock {
	name := in.Name
	if name == "" {
		name = s.names.Name(s.nameTaken)
	}

	symbol := strings.ToUpper(in.Symbol)
	if symbol == "" || s.symbolTaken(symbol) {
		symbol = market.Symbol(name, s.symbolTaken)
	}

	vol := in.Volatility
	if vol <= 0 {
		vol = float64(s.rnd.Next(10, 100)) / 100
	}

	st := market.NewStock(s.nextID, name, symbol, decimal.NewFromFloat(vol), s.initialPrice(in))
	s.nextID++
	s.stocks = append(s.stocks, st)
	s.byID[st.ID] = st
	return st
}

// initialPrice derives the starting price from the instrument fundamentals.
func (s *MarketService) initialPrice(in Instrument) decimal.Decimal {
	if in.BasePrice > 0 {
		return decimal.NewFromFloat(in.BasePrice)
	}
	if in.Revenue > 0 && in.Shares > 0 {
		multiple := in.Multiple
		if multiple <= 0 {
			multiple = 1
		}
		return decimal.NewFromFloat(in.Revenue).
			Div(decimal.NewFromFloat(in.Shares)).
			Mul(decimal.NewFromFloat(multiple))
	}
	lo := int(s.cfg.MinPrice * 100)
	hi := int(s.cfg.MaxPrice * 100)
	return decimal.New(int64(s.rnd.Next(lo, hi)), -2)
}

// backfill generates synthetic daily rows for the days before today with a
// bounded random walk and continues the stock from the last close.
func (s *MarketService) backfill(st *market.Stock) int {
	if s.cfg.BackfillDays <= 0 {
		return 0
	}

	today := clock.Day(s.clock.Now())
	maxMove := st.Volatility.Mul(decimal.NewFromFloat(s.cfg.BackfillMaxMovePercent))
	hundred := decimal.NewFromInt(100)
	perturb := func(prev decimal.Decimal, u float64) decimal.Decimal {
		p := market.RoundPrice(prev.Add(prev.Mul(maxMove).Mul(decimal.NewFromFloat(u)).Div(hundred)))
		if p.LessThan(market.MinPrice) {
			return market.MinPrice
		}
		return p
	}

	prev := st.Price
	rows := 0
	for i := s.cfg.BackfillDays; i >= 1; i-- {
		day := today.AddDate(0, 0, -i)
		if s.closedDays[day.Weekday()] {
			continue
		}

		closePrice := perturb(prev, s.rnd.NextDouble()*2-1)
		low := perturb(prev, -s.rnd.NextDouble())
		high := perturb(prev, s.rnd.NextDouble())
		low = decimal.Min(low, prev, closePrice)
		high = decimal.Max(high, prev, closePrice)

		st.AddHistory(market.HistoricalData{
			Date:  day,
			Open:  prev,
			Close: decimal.NewNullDecimal(closePrice),
			High:  high,
			Low:   low,
		})
		prev = closePrice
		rows++
	}

	st.Price = prev
	st.OpeningPrice = prev
	st.HighPrice = prev
	st.LowPrice = prev
	st.Closing = market.ClosedAt(prev)
	return rows
}

// Restore installs a universe decoded from a snapshot and completes
// initialization without bootstrapping.
func (s *MarketService) Restore(stocks []*market.Stock, sess Session) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}

	sorted := append([]*market.Stock(nil), stocks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[market.StockID]*market.Stock, len(sorted))
	next := market.StockID(1)
	for _, st := range sorted {
		if _, dup := byID[st.ID]; dup {
			return fmt.Errorf("duplicate stock id %d", st.ID)
		}
		byID[st.ID] = st
		if st.ID >= next {
			next = st.ID + 1
		}
	}

	s.stocks = sorted
	s.byID = byID
	s.nextID = next
	s.session = sess.State
	s.sessionDay = sess.SessionDay
	s.lastOpenDay = sess.LastOpenDay
	// a snapshot never captures a transition midway
	if s.session == SessionOpening {
		s.session = SessionOpen
	} else if s.session == SessionClosing {
		s.session = SessionClosed
	}

	for i := range s.ready {
		s.ready[i] = true
	}
	s.initialized = true
	s.mview.Apply(s.clock.Now(), s.session == SessionOpen, s.stocks, false)

	s.log.Info().Int("stocks", len(s.stocks)).Str("session", s.session.String()).Msg("market restored")
	return nil
}

// Session returns the persisted session state.
func (s *MarketService) Session() Session {
	return Session{State: s.session, SessionDay: s.sessionDay, LastOpenDay: s.lastOpenDay}
}

// State returns the session state.
func (s *MarketService) State() SessionState {
	return s.session
}

// IsOpen reports whether a session is running.
func (s *MarketService) IsOpen() bool {
	return s.session == SessionOpen
}

// OnMinuteElapsed implements clock.Listener. Hour-boundary minutes are left
// to OnHourElapsed, which updates after generating trends.
func (s *MarketService) OnMinuteElapsed(isHourBoundary bool) {
	if !s.initialized || isHourBoundary || s.session != SessionOpen {
		return
	}
	s.updatePass()
}

// OnHourElapsed implements clock.Listener. It is safe to deliver more than
// once for the same hour.
func (s *MarketService) OnHourElapsed() {
	if !s.initialized {
		return
	}
	now := s.clock.Now()
	wasOpen := s.session == SessionOpen

	s.evaluateSession(now)

	if !wasOpen || s.session != SessionOpen {
		return
	}
	if n := s.trends.Run(s.stocks); n > 0 {
		s.log.Debug().Int("started", n).Msg("trends started")
	}
	s.updatePass()
	if s.portfolio != nil {
		s.portfolio.Prune(now)
	}
}

func (s *MarketService) shouldBeOpen(now time.Time) bool {
	if s.closedDays[now.Weekday()] {
		return false
	}
	h := now.Hour()
	return h >= s.cfg.OpeningHour && h < s.cfg.ClosingHour
}

func (s *MarketService) evaluateSession(now time.Time) {
	want := s.shouldBeOpen(now)
	today := clock.Day(now)

	switch {
	case want && s.session == SessionClosed && !today.Equal(s.lastOpenDay):
		s.open(now)
	case !want && s.session == SessionOpen:
		s.close(now)
	}
}

func (s *MarketService) open(now time.Time) {
	s.session = SessionOpening
	day := clock.Day(now)

	for _, st := range s.stocks {
		st.Open()
	}
	if s.portfolio != nil {
		s.portfolio.SnapshotWorth(day)
	}
	s.mview.ResetTapes()

	s.session = SessionOpen
	s.sessionDay = day
	s.lastOpenDay = day

	s.log.Info().Time("day", day).Msg("market opened")
	s.notifier.Notify(notify.Notification{
		Time:     now,
		Kind:     notify.KindSessionOpened,
		Headline: "Market opened",
	})

	s.updatePass()
}

func (s *MarketService) close(now time.Time) {
	s.session = SessionClosing
	day := s.sessionDay
	if day.IsZero() {
		day = clock.Day(now)
	}
	cutoff := day.AddDate(0, 0, -s.cfg.HistoryRetentionDays)

	purged := 0
	for _, st := range s.stocks {
		st.Close(day)
		purged += st.PurgeHistory(cutoff)
	}

	s.session = SessionClosed
	s.mview.Apply(now, false, s.stocks, false)

	s.log.Info().Time("day", day).Msg("market closed")
	s.log.Debug().Int("purged", purged).Msg("history purged")
	s.notifier.Notify(notify.Notification{
		Time:     now,
		Kind:     notify.KindSessionClosed,
		Headline: "Market closed",
	})
}

func (s *MarketService) updatePass() {
	fluct := decimal.NewFromFloat(s.cfg.MaxFluctuationPercent)
	for _, st := range s.stocks {
		st.UpdatePrice(s.rnd, fluct)
	}
	if s.portfolio != nil {
		s.portfolio.SettleOrders()
	}
	s.mview.Apply(s.clock.Now(), true, s.stocks, true)
}

func (s *MarketService) nameTaken(name string) bool {
	for _, st := range s.stocks {
		if st.Name == name {
			return true
		}
	}
	return false
}

func (s *MarketService) symbolTaken(symbol string) bool {
	for _, st := range s.stocks {
		if st.Symbol == symbol {
			return true
		}
	}
	return false
}

// Stocks returns the universe ordered by id. Callers must not mutate it.
func (s *MarketService) Stocks() []*market.Stock {
	return append([]*market.Stock(nil), s.stocks...)
}

// Stock returns the stock with the given id.
func (s *MarketService) Stock(id market.StockID) (*market.Stock, error) {
	st, ok := s.byID[id]
	if !ok {
		return nil, ErrUnknownStock
	}
	return st, nil
}

// StockBySymbol returns the stock with the given symbol, case-insensitively.
func (s *MarketService) StockBySymbol(symbol string) (*market.Stock, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, st := range s.stocks {
		if st.Symbol == symbol {
			return st, nil
		}
	}
	return nil, ErrUnknownStock
}

// Price returns the current price of a stock.
func (s *MarketService) Price(id market.StockID) (decimal.Decimal, bool) {
	st, ok := s.byID[id]
	if !ok {
		return decimal.Zero, false
	}
	return st.Price, true
}

// Quote returns a point-in-time quote for a stock.
func (s *MarketService) Quote(id market.StockID) (marketview.Quote, error) {
	st, ok := s.byID[id]
	if !ok {
		return marketview.Quote{}, ErrUnknownStock
	}
	return marketview.QuoteOf(st), nil
}

// Snapshot returns the latest market snapshot. Safe for concurrent readers.
func (s *MarketService) Snapshot() marketview.MarketSnapshot {
	return s.mview.Snapshot()
}

// Tape returns the last n minute prices of a stock. Safe for concurrent readers.
func (s *MarketService) Tape(id market.StockID, n int) []marketview.PricePoint {
	return s.mview.Tape(id, n)
}
