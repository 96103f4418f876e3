package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/market"
	marketservice "github.com/zappabad/stocksim/internal/market/service"
	"github.com/zappabad/stocksim/internal/rng"
	"github.com/zappabad/stocksim/internal/trade"
)

// ErrCorruptSnapshot is returned when records cannot be turned back into a
// market. The target is left untouched.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Market is the side of the market service snapshot I/O needs.
type Market interface {
	Initialized() bool
	Stocks() []*market.Stock
	Session() marketservice.Session
	Restore(stocks []*market.Stock, sess marketservice.Session) error
}

// Portfolio is the side of the trade controller snapshot I/O needs.
type Portfolio interface {
	ExportState() trade.State
	ImportState(st trade.State)
}

// Clock is the game clock.
type Clock interface {
	Now() time.Time
	Set(t time.Time)
}

// Random is the shared random stream.
type Random interface {
	State() ([]byte, error)
	Restore(state []byte) error
}

// Bundle groups everything a snapshot covers.
type Bundle struct {
	Market    Market
	Portfolio Portfolio
	Clock     Clock
	Random    Random
}

// Export flattens b into records: the control record, one record per stock
// ordered by id, then the daily rows of every stock.
func Export(b Bundle) ([]Record, error) {
	if !b.Market.Initialized() {
		return nil, marketservice.ErrNotInitialized
	}

	rnd, err := b.Random.State()
	if err != nil {
		return nil, fmt.Errorf("random state: %w", err)
	}
	tradeState, err := json.Marshal(b.Portfolio.ExportState())
	if err != nil {
		return nil, fmt.Errorf("trade state: %w", err)
	}

	sess := b.Market.Session()
	recs := []Record{{
		Kind: KindControl,
		Control: &ControlRecord{
			Version:     Version,
			Clock:       b.Clock.Now(),
			Session:     sess.State.String(),
			SessionDay:  sess.SessionDay,
			LastOpenDay: sess.LastOpenDay,
			Random:      base64.StdEncoding.EncodeToString(rnd),
			Trade:       string(tradeState),
		},
	}}

	stocks := b.Market.Stocks()
	for _, st := range stocks {
		recs = append(recs, Record{Kind: KindStock, Stock: stockRecord(st)})
	}
	for _, st := range stocks {
		for _, h := range st.History() {
			recs = append(recs, Record{Kind: KindHistory, History: historyRecord(st.ID, h)})
		}
	}
	return recs, nil
}

func stockRecord(st *market.Stock) *StockRecord {
	r := &StockRecord{
		ID:         int64(st.ID),
		Name:       st.Name,
		Symbol:     st.Symbol,
		Volatility: st.Volatility,
		Price:      st.Price,
		Open:       st.OpeningPrice,
		High:       st.HighPrice,
		Low:        st.LowPrice,
	}
	if v, closed := st.Closing.Value(); closed {
		r.Close = &v
	}
	if t, step, ok := st.Trend(); ok {
		r.Trend = &TrendRecord{
			Percentage: t.Percentage,
			Start:      t.StartPrice,
			End:        t.EndPrice,
			Steps:      t.Steps,
			Step:       step,
		}
	}
	return r
}

func historyRecord(id market.StockID, h market.HistoricalData) *HistoryRecord {
	r := &HistoryRecord{
		StockID:         int64(id),
		Date:            h.Date,
		Open:            h.Open,
		High:            h.High,
		Low:             h.Low,
		TrendPercentage: h.TrendPercentage,
	}
	if h.Close.Valid {
		c := h.Close.Decimal
		r.Close = &c
	}
	return r
}

// Import rebuilds b from records. Everything is decoded and checked before
// anything is applied, so a failed import leaves the market uninitialized.
func Import(b Bundle, recs []Record) error {
	if b.Market.Initialized() {
		return marketservice.ErrAlreadyInitialized
	}

	decoded, err := decode(recs)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot rejected")
		return err
	}

	// the market reads the clock while restoring
	prev := b.Clock.Now()
	b.Clock.Set(decoded.clock)
	if err := b.Market.Restore(decoded.stocks, decoded.session); err != nil {
		b.Clock.Set(prev)
		log.Warn().Err(err).Msg("snapshot rejected")
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	b.Portfolio.ImportState(decoded.trade)
	// already checked by decode
	if err := b.Random.Restore(decoded.random); err != nil {
		return fmt.Errorf("%w: random state: %v", ErrCorruptSnapshot, err)
	}
	return nil
}

type decodedSnapshot struct {
	clock   time.Time
	session marketservice.Session
	random  []byte
	trade   trade.State
	stocks  []*market.Stock
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptSnapshot, fmt.Sprintf(format, args...))
}

func decode(recs []Record) (*decodedSnapshot, error) {
	if len(recs) == 0 || recs[0].Kind != KindControl || recs[0].Control == nil {
		return nil, corrupt("missing control record")
	}
	ctl := recs[0].Control
	if ctl.Version != Version {
		return nil, corrupt("unsupported version %d", ctl.Version)
	}

	out := &decodedSnapshot{clock: ctl.Clock}
	state, err := marketservice.ParseSessionState(ctl.Session)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	out.session = marketservice.Session{State: state, SessionDay: ctl.SessionDay, LastOpenDay: ctl.LastOpenDay}

	if out.random, err = base64.StdEncoding.DecodeString(ctl.Random); err != nil {
		return nil, corrupt("random state: %v", err)
	}
	if err := rng.New(0).Restore(out.random); err != nil {
		return nil, corrupt("random state: %v", err)
	}
	if err := json.Unmarshal([]byte(ctl.Trade), &out.trade); err != nil {
		return nil, corrupt("trade state: %v", err)
	}

	byID := make(map[int64]*market.Stock)
	history := make(map[int64][]market.HistoricalData)
	for i, r := range recs[1:] {
		switch r.Kind {
		case KindStock:
			if r.Stock == nil {
				return nil, corrupt("record %d: empty stock", i+1)
			}
			st, err := restoreStock(r.Stock)
			if err != nil {
				return nil, corrupt("record %d: %v", i+1, err)
			}
			if _, dup := byID[r.Stock.ID]; dup {
				return nil, corrupt("record %d: duplicate stock %d", i+1, r.Stock.ID)
			}
			byID[r.Stock.ID] = st
		case KindHistory:
			if r.History == nil {
				return nil, corrupt("record %d: empty history", i+1)
			}
			history[r.History.StockID] = append(history[r.History.StockID], restoreHistory(r.History))
		default:
			return nil, corrupt("record %d: unexpected kind %q", i+1, r.Kind)
		}
	}

	// instruments are rebuilt in id order
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for id, rows := range history {
		st, ok := byID[id]
		if !ok {
			return nil, corrupt("history for unknown stock %d", id)
		}
		st.SetHistory(rows)
	}
	for _, id := range ids {
		out.stocks = append(out.stocks, byID[id])
	}
	for id := range out.trade.Holdings {
		if _, ok := byID[int64(id)]; !ok {
			return nil, corrupt("holding of unknown stock %d", id)
		}
	}
	for _, o := range out.trade.Orders {
		if _, ok := byID[int64(o.StockID)]; !ok {
			return nil, corrupt("order for unknown stock %d", o.StockID)
		}
	}
	return out, nil
}

func restoreStock(r *StockRecord) (*market.Stock, error) {
	if !r.Price.IsPositive() {
		return nil, fmt.Errorf("stock %d: non-positive price %s", r.ID, r.Price)
	}
	if r.Symbol == "" {
		return nil, fmt.Errorf("stock %d: empty symbol", r.ID)
	}

	st := market.NewStock(market.StockID(r.ID), r.Name, r.Symbol, r.Volatility, r.Price)
	st.Price = r.Price
	st.OpeningPrice = r.Open
	st.HighPrice = r.High
	st.LowPrice = r.Low
	if r.Close != nil {
		st.Closing = market.ClosedAt(*r.Close)
	} else {
		st.Closing = market.OpenSession()
	}
	if r.Trend != nil {
		if r.Trend.Steps <= 0 || r.Trend.Step < 0 {
			return nil, fmt.Errorf("stock %d: bad trend steps %d/%d", r.ID, r.Trend.Step, r.Trend.Steps)
		}
		st.RestoreTrend(market.Trend{
			Percentage: r.Trend.Percentage,
			StartPrice: r.Trend.Start,
			EndPrice:   r.Trend.End,
			Steps:      r.Trend.Steps,
		}, r.Trend.Step)
	}
	return st, nil
}

func restoreHistory(r *HistoryRecord) market.HistoricalData {
	h := market.HistoricalData{
		Date:            r.Date,
		Open:            r.Open,
		High:            r.High,
		Low:             r.Low,
		TrendPercentage: r.TrendPercentage,
	}
	if r.Close != nil {
		h.Close = decimal.NewNullDecimal(*r.Close)
	}
	return h
}
