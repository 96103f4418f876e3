package view

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one recorded minute price.
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal
}

// PriceTape is a ring buffer of minute prices (bounded memory).
type PriceTape struct {
	buf   []PricePoint
	size  int
	start int
	count int
}

// NewPriceTape creates a new PriceTape with the given capacity.
func NewPriceTape(capacity int) *PriceTape {
	if capacity <= 0 {
		capacity = 1
	}
	return &PriceTape{
		buf:  make([]PricePoint, capacity),
		size: capacity,
	}
}

// Append adds a price point to the tape.
func (t *PriceTape) Append(p PricePoint) {
	if t.count < t.size {
		t.buf[(t.start+t.count)%t.size] = p
		t.count++
		return
	}
	// overwrite oldest
	t.buf[t.start] = p
	t.start = (t.start + 1) % t.size
}

// Last returns the last n points in chronological order.
// Returns a copy (not internal references).
func (t *PriceTape) Last(n int) []PricePoint {
	if n <= 0 || t.count == 0 {
		return nil
	}
	if n > t.count {
		n = t.count
	}
	out := make([]PricePoint, n)
	first := (t.start + (t.count - n)) % t.size
	for i := 0; i < n; i++ {
		out[i] = t.buf[(first+i)%t.size]
	}
	return out
}

// Count returns the number of points in the tape.
func (t *PriceTape) Count() int {
	return t.count
}

// Reset empties the tape.
func (t *PriceTape) Reset() {
	t.start = 0
	t.count = 0
}
