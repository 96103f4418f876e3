package panels

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stocksim/internal/market"
	marketview "github.com/zappabad/stocksim/internal/market/view"
	"github.com/zappabad/stocksim/internal/notify"
	"github.com/zappabad/stocksim/internal/trade"
	"github.com/zappabad/stocksim/tui/styles"
)

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDailyCandlesSkipsOpenRows(t *testing.T) {
	rows := []market.HistoricalData{
		{Date: day, Open: d("10"), High: d("12"), Low: d("9"), Close: decimal.NewNullDecimal(d("11"))},
		{Date: day.AddDate(0, 0, 1), Open: d("11"), High: d("11.5"), Low: d("10.5")},
	}
	q := marketview.Quote{Open: d("11"), High: d("13"), Low: d("10"), Price: d("12.5")}

	closed := DailyCandles(rows, q, false)
	require.Len(t, closed, 1)
	assert.Equal(t, Candle{Time: day, Open: 10, High: 12, Low: 9, Close: 11}, closed[0])

	open := DailyCandles(rows, q, true)
	require.Len(t, open, 2)
	assert.Equal(t, 12.5, open[1].Close)
	assert.Equal(t, 13.0, open[1].High)
}

func TestIntradayCandlesBucketsByPeriod(t *testing.T) {
	start := day.Add(9 * time.Hour)
	var points []marketview.PricePoint
	for i, p := range []string{"10", "12", "8", "9", "11"} {
		points = append(points, marketview.PricePoint{Time: start.Add(time.Duration(i*5) * time.Minute), Price: d(p)})
	}

	candles := IntradayCandles(points, IntradayPeriod)
	require.Len(t, candles, 2)
	assert.Equal(t, Candle{Time: start, Open: 10, High: 12, Low: 8, Close: 8}, candles[0])
	assert.Equal(t, Candle{Time: start.Add(15 * time.Minute), Open: 9, High: 11, Low: 9, Close: 11}, candles[1])

	assert.Empty(t, IntradayCandles(nil, IntradayPeriod))
}

func TestFormatChange(t *testing.T) {
	assert.Equal(t, "+1.50%", styles.FormatChange(d("1.5")))
	assert.Equal(t, "-0.25%", styles.FormatChange(d("-0.25")))
	assert.Equal(t, "0.00%", styles.FormatChange(decimal.Zero))
}

func typeInto(p *OrderInputPanel, s string) {
	for _, r := range s {
		p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestOrderInputBuildsLimitOrder(t *testing.T) {
	p := NewOrderInputPanel()
	p.SetFocus(true)
	p.SetStocks([]marketview.Quote{
		{ID: 1, Symbol: "ACME", Name: "Acme Works"},
		{ID: 2, Symbol: "BRFT", Name: "Borealis Freight"},
	})

	_, err := p.Order()
	require.Error(t, err)

	typeInto(p, "bor")
	p.Update(tea.KeyMsg{Type: tea.KeyEnter}) // stock
	p.Update(tea.KeyMsg{Type: tea.KeyRight}) // SELL
	p.Update(tea.KeyMsg{Type: tea.KeyEnter}) // side
	p.Update(tea.KeyMsg{Type: tea.KeyEnter}) // type stays LIMIT
	typeInto(p, "12.75")
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	typeInto(p, "30")

	order, err := p.Order()
	require.NoError(t, err)
	assert.Equal(t, market.StockID(2), order.StockID)
	assert.Equal(t, "BRFT", order.Symbol)
	assert.Equal(t, trade.Sell, order.Side)
	assert.True(t, order.Limit)
	assert.True(t, order.Price.Equal(d("12.75")))
	assert.Equal(t, int64(30), order.Amount)
}

func TestOrderInputRejectsBadQuantity(t *testing.T) {
	p := NewOrderInputPanel()
	p.SetFocus(true)
	p.SetStock(marketview.Quote{ID: 1, Symbol: "ACME"})
	p.typeIndex = typeInstant
	p.quantityInput.SetValue("-4")

	_, err := p.Order()
	assert.Error(t, err)

	p.quantityInput.SetValue("4")
	order, err := p.Order()
	require.NoError(t, err)
	assert.False(t, order.Limit)
	assert.Equal(t, trade.Buy, order.Side)
}

func TestNotificationPanelReplacesMergedEntry(t *testing.T) {
	p := NewNotificationPanel()
	n := notify.Notification{ID: uuid.New(), Time: day, Kind: notify.KindOrderFilled, Headline: "Bought 10 ALTI", Count: 1}
	p.Add(n)
	n.Count = 2
	p.Add(n)
	p.Add(notify.Notification{ID: uuid.New(), Time: day, Headline: "Market closed"})

	require.Len(t, p.items, 2)
	assert.Equal(t, "Bought 10 ALTI (x2)", p.items[0].Label())
}
