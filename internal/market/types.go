package market

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// StockID uniquely identifies a stock. IDs are assigned monotonically.
type StockID int64

func (id StockID) String() string { return strconv.FormatInt(int64(id), 10) }

// PriceDecimals is the fixed precision of every price in the market.
const PriceDecimals = 2

var (
	// MinPrice is the smallest representable price unit.
	MinPrice = decimal.New(1, -PriceDecimals)

	hundred = decimal.NewFromInt(100)
)

// RoundPrice rounds to PriceDecimals using round-half-to-even.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(PriceDecimals)
}

// Trend is a scheduled linear price movement from StartPrice to EndPrice
// over Steps minute ticks.
type Trend struct {
	Percentage int
	StartPrice decimal.Decimal
	EndPrice   decimal.Decimal
	Steps      int
}

// NewTrend builds a trend that moves start by percentage over steps ticks.
func NewTrend(percentage int, start decimal.Decimal, steps int) Trend {
	delta := start.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred)
	return Trend{
		Percentage: percentage,
		StartPrice: start,
		EndPrice:   RoundPrice(start.Add(delta)),
		Steps:      steps,
	}
}

// HistoricalData is one trading day of a stock. Rows are identified by Date.
type HistoricalData struct {
	Date  time.Time
	Open  decimal.Decimal
	Close decimal.NullDecimal
	High  decimal.Decimal
	Low   decimal.Decimal
	// TrendPercentage is the percentage of the trend active at close, 0 if none.
	TrendPercentage int
}

// SameDay reports whether both rows describe the same calendar day.
func (h HistoricalData) SameDay(other HistoricalData) bool {
	y1, m1, d1 := h.Date.Date()
	y2, m2, d2 := other.Date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// SessionPrice is the closing price of a stock expressed as session state:
// while the session is open there is no closing price yet.
type SessionPrice struct {
	closed bool
	value  decimal.Decimal
}

// OpenSession returns the state of a stock whose session is running.
func OpenSession() SessionPrice {
	return SessionPrice{}
}

// ClosedAt returns the state of a stock whose session closed at v.
func ClosedAt(v decimal.Decimal) SessionPrice {
	return SessionPrice{closed: true, value: v}
}

// Value returns the closing price and whether the session is closed.
func (s SessionPrice) Value() (decimal.Decimal, bool) {
	return s.value, s.closed
}

// IsOpen reports whether the session has not closed yet.
func (s SessionPrice) IsOpen() bool {
	return !s.closed
}

// Equal compares two session prices.
func (s SessionPrice) Equal(o SessionPrice) bool {
	if s.closed != o.closed {
		return false
	}
	return !s.closed || s.value.Equal(o.value)
}
