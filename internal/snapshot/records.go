// Package snapshot flattens the market and the portfolio into an ordered,
// encoding-neutral record set and rebuilds them from it.
package snapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

// Version is the current record layout.
const Version = 1

// Kind tags a record.
type Kind string

const (
	KindControl Kind = "control"
	KindStock   Kind = "stock"
	KindHistory Kind = "history"
)

// Record is one row of a snapshot. Exactly one payload matches Kind.
type Record struct {
	Kind    Kind           `json:"kind" yaml:"kind"`
	Control *ControlRecord `json:"control,omitempty" yaml:"control,omitempty"`
	Stock   *StockRecord   `json:"stock,omitempty" yaml:"stock,omitempty"`
	History *HistoryRecord `json:"history,omitempty" yaml:"history,omitempty"`
}

// ControlRecord carries everything that is not per-stock.
type ControlRecord struct {
	Version     int       `json:"version" yaml:"version"`
	Clock       time.Time `json:"clock" yaml:"clock"`
	Session     string    `json:"session" yaml:"session"`
	SessionDay  time.Time `json:"session_day" yaml:"session_day"`
	LastOpenDay time.Time `json:"last_open_day" yaml:"last_open_day"`
	// Random is the base64 encoded state of the shared stream.
	Random string `json:"random" yaml:"random"`
	// Trade is the JSON encoded portfolio state.
	Trade string `json:"trade" yaml:"trade"`
}

// TrendRecord is an active trend and its progress.
type TrendRecord struct {
	Percentage int             `json:"percentage" yaml:"percentage"`
	Start      decimal.Decimal `json:"start" yaml:"start"`
	End        decimal.Decimal `json:"end" yaml:"end"`
	Steps      int             `json:"steps" yaml:"steps"`
	Step       int             `json:"step" yaml:"step"`
}

// StockRecord is the current state of one stock.
type StockRecord struct {
	ID         int64           `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Symbol     string          `json:"symbol" yaml:"symbol"`
	Volatility decimal.Decimal `json:"volatility" yaml:"volatility"`
	Price      decimal.Decimal `json:"price" yaml:"price"`
	Open       decimal.Decimal `json:"open" yaml:"open"`
	// Close is nil while the session is open.
	Close *decimal.Decimal `json:"close,omitempty" yaml:"close,omitempty"`
	High  decimal.Decimal  `json:"high" yaml:"high"`
	Low   decimal.Decimal  `json:"low" yaml:"low"`
	Trend *TrendRecord     `json:"trend,omitempty" yaml:"trend,omitempty"`
}

// HistoryRecord is one daily row of one stock.
type HistoryRecord struct {
	StockID int64           `json:"stock_id" yaml:"stock_id"`
	Date    time.Time       `json:"date" yaml:"date"`
	Open    decimal.Decimal `json:"open" yaml:"open"`
	// Close is nil for a day that never closed.
	Close           *decimal.Decimal `json:"close,omitempty" yaml:"close,omitempty"`
	High            decimal.Decimal  `json:"high" yaml:"high"`
	Low             decimal.Decimal  `json:"low" yaml:"low"`
	TrendPercentage int              `json:"trend_percentage,omitempty" yaml:"trend_percentage,omitempty"`
}
