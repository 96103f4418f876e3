package trade

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/clock"
	"github.com/zappabad/stocksim/internal/market"
	"github.com/zappabad/stocksim/internal/notify"
)

// Market is the read-only view of the market the controller trades against.
type Market interface {
	Price(id market.StockID) (decimal.Decimal, bool)
	Stock(id market.StockID) (*market.Stock, error)
}

var hundred = decimal.NewFromInt(100)

// Controller owns the player's cash, holdings, pending orders and logs.
// It only reads market state.
type Controller struct {
	cfg      Config
	market   Market
	clock    clock.TimeSource
	notifier notify.Notifier
	log      zerolog.Logger

	funds     decimal.Decimal
	balance   decimal.Decimal
	holdings  map[market.StockID]int64
	orders    []TradeOrder
	history   []TradeHistory
	portfolio []HistoricalPortfolio
}

// NewController creates a Controller with the configured starting cash.
func NewController(cfg Config, m Market, clk clock.TimeSource) *Controller {
	def := DefaultConfig()
	if cfg.TradeHistoryRetentionDays <= 0 {
		cfg.TradeHistoryRetentionDays = def.TradeHistoryRetentionDays
	}
	if cfg.PortfolioHistoryRetentionDays <= 0 {
		cfg.PortfolioHistoryRetentionDays = def.PortfolioHistoryRetentionDays
	}

	return &Controller{
		cfg:      cfg,
		market:   m,
		clock:    clk,
		notifier: notify.Discard,
		log:      log.With().Str("component", "trade").Logger(),
		funds:    market.RoundPrice(decimal.NewFromFloat(cfg.StartingFunds)),
		balance:  market.RoundPrice(decimal.NewFromFloat(cfg.ExternalBalance)),
		holdings: make(map[market.StockID]int64),
	}
}

// SetNotifier sets where fill notifications go.
func (c *Controller) SetNotifier(n notify.Notifier) {
	if n == nil {
		n = notify.Discard
	}
	c.notifier = n
}

func (c *Controller) quote(id market.StockID) (*market.Stock, decimal.Decimal, bool) {
	st, err := c.market.Stock(id)
	if err != nil {
		return nil, decimal.Zero, false
	}
	return st, st.Price, true
}

func cost(price decimal.Decimal, amount int64) decimal.Decimal {
	return market.RoundPrice(price.Mul(decimal.NewFromInt(amount)))
}

// InstantBuy buys amount shares at the current price. It reports false
// without side effects when funds are insufficient.
func (c *Controller) InstantBuy(id market.StockID, amount int64) bool {
	if amount <= 0 {
		return false
	}
	st, price, ok := c.quote(id)
	if !ok {
		return false
	}
	total := cost(price, amount)
	if total.GreaterThan(c.funds) {
		return false
	}

	c.funds = c.funds.Sub(total)
	c.holdings[id] += amount
	c.record(st.Symbol, Buy, amount, price)
	return true
}

// InstantSell sells amount held shares at the current price. It reports
// false without side effects when not enough shares are held.
func (c *Controller) InstantSell(id market.StockID, amount int64) bool {
	if amount <= 0 || c.holdings[id] < amount {
		return false
	}
	st, price, ok := c.quote(id)
	if !ok {
		return false
	}

	c.removeShares(id, amount)
	c.funds = c.funds.Add(cost(price, amount))
	c.record(st.Symbol, Sell, amount, price)
	return true
}

// BuyLimitOrder queues a buy executing once the price is at or below limit.
// The order's full value at the limit is reserved from available funds.
func (c *Controller) BuyLimitOrder(id market.StockID, limit decimal.Decimal, amount int64) (TradeOrder, bool) {
	limit = market.RoundPrice(limit)
	if amount <= 0 || !limit.IsPositive() {
		return TradeOrder{}, false
	}
	_, price, ok := c.quote(id)
	if !ok {
		return TradeOrder{}, false
	}
	// affordability is judged at the current price, not the limit, so a
	// limit above the market can reserve more than is available
	if cost(price, amount).GreaterThan(c.funds) {
		return TradeOrder{}, false
	}

	o := c.queue(id, limit, amount, Buy)
	c.funds = c.funds.Sub(o.Reserved())
	return o, true
}

// SellLimitOrder queues a sell executing once the price is at or above
// limit. The shares are removed from holdings until the order completes or
// is cancelled.
func (c *Controller) SellLimitOrder(id market.StockID, limit decimal.Decimal, amount int64) (TradeOrder, bool) {
	limit = market.RoundPrice(limit)
	if amount <= 0 || !limit.IsPositive() || c.holdings[id] < amount {
		return TradeOrder{}, false
	}
	if _, _, ok := c.quote(id); !ok {
		return TradeOrder{}, false
	}

	c.removeShares(id, amount)
	return c.queue(id, limit, amount, Sell), true
}

func (c *Controller) queue(id market.StockID, limit decimal.Decimal, amount int64, t OrderType) TradeOrder {
	o := TradeOrder{
		ID:      uuid.New(),
		StockID: id,
		Price:   limit,
		Amount:  amount,
		Type:    t,
		Placed:  c.clock.Now(),
	}
	c.orders = append(c.orders, o)
	c.log.Debug().
		Str("order", o.ID.String()).
		Stringer("type", t).
		Int64("amount", amount).
		Stringer("limit", limit).
		Msg("limit order placed")
	return o
}

// CancelOrder refunds the reservation of a pending order and removes it.
// It reports false if the order is unknown or already completed.
func (c *Controller) CancelOrder(id uuid.UUID) bool {
	for i, o := range c.orders {
		if o.ID != id {
			continue
		}
		if o.Completed {
			return false
		}
		switch o.Type {
		case Buy:
			c.funds = c.funds.Add(o.Reserved())
		case Sell:
			c.holdings[o.StockID] += o.Amount
		}
		c.orders = append(c.orders[:i], c.orders[i+1:]...)
		c.log.Debug().Str("order", id.String()).Msg("limit order cancelled")
		return true
	}
	return false
}

// SettleOrders executes every pending order whose limit the current price
// has crossed, at the current price. Funds and shares were reserved at
// placement so nothing is re-validated.
func (c *Controller) SettleOrders() {
	if len(c.orders) == 0 {
		return
	}

	filled := 0
	for i := range c.orders {
		o := &c.orders[i]
		if o.Completed {
			continue
		}
		st, price, ok := c.quote(o.StockID)
		if !ok {
			continue
		}

		switch {
		case o.Type == Buy && price.LessThanOrEqual(o.Price):
			// refund the difference between the reservation and the fill
			c.funds = c.funds.Add(o.Reserved()).Sub(cost(price, o.Amount))
			c.holdings[o.StockID] += o.Amount
		case o.Type == Sell && price.GreaterThanOrEqual(o.Price):
			c.funds = c.funds.Add(cost(price, o.Amount))
		default:
			continue
		}

		o.Completed = true
		filled++
		c.record(st.Symbol, o.Type, o.Amount, price)
		if c.cfg.NotifyOnFill {
			c.notifier.Notify(notify.Notification{
				Time:     c.clock.Now(),
				Kind:     notify.KindOrderFilled,
				Symbol:   st.Symbol,
				Headline: fmt.Sprintf("%s %d %s @ %s", titleCase(o.Type), o.Amount, st.Symbol, price.StringFixed(2)),
			})
		}
	}

	if filled == 0 {
		return
	}
	pending := c.orders[:0]
	for _, o := range c.orders {
		if !o.Completed {
			pending = append(pending, o)
		}
	}
	c.orders = pending
}

func titleCase(t OrderType) string {
	if t == Sell {
		return "Sold"
	}
	return "Bought"
}

func (c *Controller) record(symbol string, t OrderType, amount int64, price decimal.Decimal) {
	c.history = append(c.history, TradeHistory{
		DateTime: c.clock.Now(),
		Symbol:   symbol,
		Type:     t,
		Amount:   amount,
		Price:    price,
	})
	c.log.Debug().
		Str("symbol", symbol).
		Stringer("type", t).
		Int64("amount", amount).
		Stringer("price", price).
		Msg("trade executed")
}

func (c *Controller) removeShares(id market.StockID, amount int64) {
	left := c.holdings[id] - amount
	if left == 0 {
		delete(c.holdings, id)
		return
	}
	c.holdings[id] = left
}

// TotalInvestedInStocks is the market value of held shares plus shares
// reserved by pending sell orders.
func (c *Controller) TotalInvestedInStocks() decimal.Decimal {
	total := decimal.Zero
	for id, n := range c.holdings {
		if price, ok := c.market.Price(id); ok {
			total = total.Add(price.Mul(decimal.NewFromInt(n)))
		}
	}
	for _, o := range c.orders {
		if o.Completed || o.Type != Sell {
			continue
		}
		if price, ok := c.market.Price(o.StockID); ok {
			total = total.Add(price.Mul(decimal.NewFromInt(o.Amount)))
		}
	}
	return market.RoundPrice(total)
}

// OutstandingBuyValue is the cash reserved by pending buy orders.
func (c *Controller) OutstandingBuyValue() decimal.Decimal {
	total := decimal.Zero
	for _, o := range c.orders {
		if !o.Completed && o.Type == Buy {
			total = total.Add(o.Reserved())
		}
	}
	return total
}

// PortfolioWorth is invested value plus available funds plus reserved cash.
func (c *Controller) PortfolioWorth() decimal.Decimal {
	return market.RoundPrice(c.TotalInvestedInStocks().Add(c.funds).Add(c.OutstandingBuyValue()))
}

// Performance returns the percentage change of the worth against the most
// recent snapshot at least days old. It reports false when there is no such
// snapshot or its worth is zero.
func (c *Controller) Performance(days int) (decimal.Decimal, bool) {
	target := clock.Day(c.clock.Now()).AddDate(0, 0, -days)

	var prev *HistoricalPortfolio
	for i := range c.portfolio {
		p := &c.portfolio[i]
		if p.Date.After(target) {
			continue
		}
		if prev == nil || p.Date.After(prev.Date) {
			prev = p
		}
	}
	if prev == nil || prev.Worth.IsZero() {
		return decimal.Zero, false
	}

	current := c.PortfolioWorth()
	return current.Sub(prev.Worth).Div(prev.Worth).Mul(hundred).Round(2), true
}

// Deposit moves amount from the external balance into available funds.
func (c *Controller) Deposit(amount decimal.Decimal) bool {
	amount = market.RoundPrice(amount)
	if !amount.IsPositive() || amount.GreaterThan(c.balance) {
		return false
	}
	c.balance = c.balance.Sub(amount)
	c.funds = c.funds.Add(amount)
	return true
}

// Withdraw moves amount from available funds to the external balance.
func (c *Controller) Withdraw(amount decimal.Decimal) bool {
	amount = market.RoundPrice(amount)
	if !amount.IsPositive() || amount.GreaterThan(c.funds) {
		return false
	}
	c.funds = c.funds.Sub(amount)
	c.balance = c.balance.Add(amount)
	return true
}

// SnapshotWorth records the current worth for day, replacing an existing
// snapshot of the same day.
func (c *Controller) SnapshotWorth(day time.Time) {
	day = clock.Day(day)
	worth := c.PortfolioWorth()
	for i := range c.portfolio {
		if c.portfolio[i].Date.Equal(day) {
			c.portfolio[i].Worth = worth
			return
		}
	}
	c.portfolio = append(c.portfolio, HistoricalPortfolio{Date: day, Worth: worth})
	sort.SliceStable(c.portfolio, func(i, j int) bool { return c.portfolio[i].Date.Before(c.portfolio[j].Date) })
}

// Prune drops trade log and portfolio rows past their retention windows.
func (c *Controller) Prune(now time.Time) {
	tradeCutoff := now.AddDate(0, 0, -c.cfg.TradeHistoryRetentionDays)
	history := c.history[:0]
	for _, h := range c.history {
		if !h.DateTime.Before(tradeCutoff) {
			history = append(history, h)
		}
	}
	droppedTrades := len(c.history) - len(history)
	c.history = history

	portfolioCutoff := clock.Day(now).AddDate(0, 0, -c.cfg.PortfolioHistoryRetentionDays)
	portfolio := c.portfolio[:0]
	for _, p := range c.portfolio {
		if !p.Date.Before(portfolioCutoff) {
			portfolio = append(portfolio, p)
		}
	}
	droppedSnapshots := len(c.portfolio) - len(portfolio)
	c.portfolio = portfolio

	if droppedTrades > 0 || droppedSnapshots > 0 {
		c.log.Debug().Int("trades", droppedTrades).Int("snapshots", droppedSnapshots).Msg("logs pruned")
	}
}

// AvailableFunds is the cash free for trading.
func (c *Controller) AvailableFunds() decimal.Decimal {
	return c.funds
}

// Balance is the cash outside the brokerage account.
func (c *Controller) Balance() decimal.Decimal {
	return c.balance
}

// Holding returns the number of unreserved shares held.
func (c *Controller) Holding(id market.StockID) int64 {
	return c.holdings[id]
}

// Holdings returns a copy of all holdings.
func (c *Controller) Holdings() map[market.StockID]int64 {
	out := make(map[market.StockID]int64, len(c.holdings))
	for id, n := range c.holdings {
		out[id] = n
	}
	return out
}

// PendingOrders returns a copy of the pending orders in placement order.
func (c *Controller) PendingOrders() []TradeOrder {
	return append([]TradeOrder(nil), c.orders...)
}

// TradeHistory returns a copy of the execution log, oldest first.
func (c *Controller) TradeHistory() []TradeHistory {
	return append([]TradeHistory(nil), c.history...)
}

// PortfolioHistory returns a copy of the daily worth snapshots, oldest first.
func (c *Controller) PortfolioHistory() []HistoricalPortfolio {
	return append([]HistoricalPortfolio(nil), c.portfolio...)
}

// ExportState returns a deep copy of everything the controller owns.
func (c *Controller) ExportState() State {
	return State{
		AvailableFunds: c.funds,
		Balance:        c.balance,
		Holdings:       c.Holdings(),
		Orders:         c.PendingOrders(),
		History:        c.TradeHistory(),
		Portfolio:      c.PortfolioHistory(),
	}
}

// ImportState replaces everything the controller owns. Completed orders in
// st are dropped.
func (c *Controller) ImportState(st State) {
	c.funds = st.AvailableFunds
	c.balance = st.Balance
	c.holdings = make(map[market.StockID]int64, len(st.Holdings))
	for id, n := range st.Holdings {
		if n > 0 {
			c.holdings[id] = n
		}
	}
	c.orders = c.orders[:0]
	for _, o := range st.Orders {
		if !o.Completed {
			c.orders = append(c.orders, o)
		}
	}
	c.history = append([]TradeHistory(nil), st.History...)
	c.portfolio = append([]HistoricalPortfolio(nil), st.Portfolio...)
}
