package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zappabad/stocksim/internal/rng"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// scripted is a Random with fixed answers.
type scripted struct {
	doubles []float64
	gauss   float64
	ints    []int
}

func (s *scripted) Next(min, max int) int {
	if len(s.ints) == 0 {
		return min
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v
}

func (s *scripted) NextDouble() float64 {
	if len(s.doubles) == 0 {
		return 0.5
	}
	v := s.doubles[0]
	s.doubles = s.doubles[1:]
	return v
}

func (s *scripted) NextGaussian(mean, stdDev float64) float64 { return s.gauss }

func TestTrendConvergesToEndPrice(t *testing.T) {
	s := NewStock(1, "Altex Industries", "ALTI", d("0.5"), d("100"))
	tr := NewTrend(-10, s.Price, 7)
	require.True(t, tr.EndPrice.Equal(d("90")))
	require.True(t, s.SetTrend(tr))

	r := rng.New(42)
	for i := 0; i < 7; i++ {
		assert.True(t, s.UpdatePrice(r, d("1")))
	}
	assert.True(t, s.Price.Equal(d("90")), "got %s", s.Price)
	assert.False(t, s.HasTrend())
	assert.True(t, s.LowPrice.Equal(d("90")))
	assert.True(t, s.HighPrice.Equal(d("100")))
}

func TestTrendConvergenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := decimal.NewFromInt(int64(rapid.IntRange(1, 100000).Draw(t, "cents"))).Shift(-2)
		pct := rapid.IntRange(-90, 300).Draw(t, "pct")
		steps := rapid.IntRange(1, 400).Draw(t, "steps")

		s := NewStock(1, "X", "X", d("1"), start)
		tr := NewTrend(pct, s.Price, steps)
		if tr.EndPrice.LessThanOrEqual(MinPrice) {
			t.Skip("floor clamps the trend")
		}
		s.SetTrend(tr)

		r := rng.New(int64(steps))
		for i := 0; i < steps; i++ {
			s.UpdatePrice(r, d("1"))
		}
		if !s.Price.Equal(tr.EndPrice) {
			t.Fatalf("price %s, want %s", s.Price, tr.EndPrice)
		}
	})
}

func TestFloorInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		vol := decimal.NewFromInt(int64(rapid.IntRange(1, 100).Draw(t, "vol"))).Shift(-2)
		fluct := decimal.NewFromInt(int64(rapid.IntRange(1, 400).Draw(t, "fluct")))
		start := decimal.NewFromInt(int64(rapid.IntRange(1, 5000).Draw(t, "cents"))).Shift(-2)

		s := NewStock(1, "X", "X", vol, start)
		r := rng.New(seed)
		ticks := rapid.IntRange(1, 300).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			if !s.HasTrend() && rapid.IntRange(0, 9).Draw(t, "trend") == 0 {
				pct := rapid.IntRange(-150, 50).Draw(t, "pct")
				s.SetTrend(NewTrend(pct, s.Price, rapid.IntRange(1, 30).Draw(t, "steps")))
			}
			s.UpdatePrice(r, fluct)
			if s.Price.LessThan(MinPrice) {
				t.Fatalf("price %s below floor", s.Price)
			}
			if !s.Price.Equal(RoundPrice(s.Price)) {
				t.Fatalf("price %s not rounded", s.Price)
			}
		}
	})
}

func TestFloorClearsDeadTrend(t *testing.T) {
	s := NewStock(1, "X", "X", d("1"), d("1"))
	s.SetTrend(NewTrend(-100, s.Price, 2))

	s.UpdatePrice(&scripted{}, d("1"))
	assert.True(t, s.Price.Equal(d("0.5")))
	assert.True(t, s.HasTrend())

	s.UpdatePrice(&scripted{}, d("1"))
	assert.True(t, s.Price.Equal(MinPrice))
	assert.False(t, s.HasTrend())
}

func TestFlatTickWithoutTrend(t *testing.T) {
	s := NewStock(1, "X", "X", d("1"), d("50"))
	moved := s.UpdatePrice(&scripted{doubles: []float64{0.05}}, d("1"))
	assert.False(t, moved)
	assert.True(t, s.Price.Equal(d("50")))
}

func TestNoiseMovesOneExtremum(t *testing.T) {
	s := NewStock(1, "X", "X", d("1"), d("100"))

	// 0.5 passes the flat check, 1.0 maps to the top of the range
	s.UpdatePrice(&scripted{doubles: []float64{0.5, 1.0}}, d("2"))
	assert.True(t, s.Price.Equal(d("102")))
	assert.True(t, s.HighPrice.Equal(d("102")))
	assert.True(t, s.LowPrice.Equal(d("100")))

	s.UpdatePrice(&scripted{doubles: []float64{0.5, 0.0}}, d("2"))
	assert.True(t, s.Price.Equal(d("99.96")))
	assert.True(t, s.LowPrice.Equal(d("99.96")))
	assert.True(t, s.HighPrice.Equal(d("102")))
}

func TestSessionOpenClose(t *testing.T) {
	s := NewStock(1, "X", "X", d("1"), d("20"))
	_, closed := s.Closing.Value()
	require.True(t, closed)

	s.Open()
	assert.True(t, s.Closing.IsOpen())
	assert.True(t, s.OpeningPrice.Equal(d("20")))

	s.Price = d("22")
	s.HighPrice = d("23")
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	row := s.Close(day)

	v, closed := s.Closing.Value()
	assert.True(t, closed)
	assert.True(t, v.Equal(d("22")))
	assert.True(t, row.Close.Valid)
	assert.True(t, row.High.Equal(d("23")))
	assert.True(t, s.HighPrice.Equal(d("22")))
	assert.Len(t, s.History(), 1)
	assert.True(t, s.ChangePercent().Equal(d("10")))
}

func TestChangePercentZeroOpening(t *testing.T) {
	s := NewStock(1, "X", "X", d("1"), d("5"))
	s.OpeningPrice = decimal.Zero
	assert.True(t, s.ChangePercent().IsZero())
}

func TestHistoryKeyedByDate(t *testing.T) {
	s := NewStock(1, "X", "X", d("1"), d("5"))
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	s.AddHistory(HistoricalData{Date: day2, Close: decimal.NewNullDecimal(d("6"))})
	s.AddHistory(HistoricalData{Date: day1, Close: decimal.NewNullDecimal(d("5"))})
	s.AddHistory(HistoricalData{Date: day2.Add(3 * time.Hour), Close: decimal.NewNullDecimal(d("7"))})

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, day1, h[0].Date)
	assert.True(t, h[1].Close.Decimal.Equal(d("7")))

	assert.Equal(t, []float64{40}, s.DailyChanges())

	assert.Equal(t, 1, s.PurgeHistory(day2))
	assert.Len(t, s.History(), 1)
}

func TestSessionPriceEqual(t *testing.T) {
	assert.True(t, OpenSession().Equal(OpenSession()))
	assert.True(t, ClosedAt(d("1.50")).Equal(ClosedAt(d("1.5"))))
	assert.False(t, ClosedAt(d("1")).Equal(OpenSession()))
}
