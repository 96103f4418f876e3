// Package trade is the single player's portfolio: cash, holdings, limit
// orders, the execution log and daily worth snapshots.
package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/market"
)

// OrderType is the direction of an order.
type OrderType int

const (
	Buy OrderType = iota
	Sell
)

func (t OrderType) String() string {
	if t == Sell {
		return "sell"
	}
	return "buy"
}

// MarshalText implements encoding.TextMarshaler.
func (t OrderType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *OrderType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "buy":
		*t = Buy
	case "sell":
		*t = Sell
	default:
		return fmt.Errorf("unknown order type %q", b)
	}
	return nil
}

// TradeOrder is a pending limit order. Its economic effect is reserved at
// placement: cash for a buy, shares for a sell.
type TradeOrder struct {
	ID        uuid.UUID       `json:"id"`
	StockID   market.StockID  `json:"stock_id"`
	Price     decimal.Decimal `json:"price"`
	Amount    int64           `json:"amount"`
	Type      OrderType       `json:"type"`
	Completed bool            `json:"completed"`
	Placed    time.Time       `json:"placed"`
}

// Reserved is the cash set aside by a buy order.
func (o TradeOrder) Reserved() decimal.Decimal {
	return market.RoundPrice(o.Price.Mul(decimal.NewFromInt(o.Amount)))
}

// TradeHistory is one executed trade.
type TradeHistory struct {
	DateTime time.Time       `json:"date_time"`
	Symbol   string          `json:"symbol"`
	Type     OrderType       `json:"type"`
	Amount   int64           `json:"amount"`
	Price    decimal.Decimal `json:"price"`
}

// HistoricalPortfolio is the portfolio worth at a session open.
type HistoricalPortfolio struct {
	Date  time.Time       `json:"date"`
	Worth decimal.Decimal `json:"worth"`
}

// State is everything the controller owns, in serializable form.
type State struct {
	AvailableFunds decimal.Decimal          `json:"available_funds"`
	Balance        decimal.Decimal          `json:"balance"`
	Holdings       map[market.StockID]int64 `json:"holdings"`
	Orders         []TradeOrder             `json:"orders"`
	History        []TradeHistory           `json:"history"`
	Portfolio      []HistoricalPortfolio    `json:"portfolio"`
}
