package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stocksim/internal/clock"
	"github.com/zappabad/stocksim/internal/market"
	marketservice "github.com/zappabad/stocksim/internal/market/service"
	"github.com/zappabad/stocksim/internal/rng"
)

func TestLimitBuyFillsOnDownTrend(t *testing.T) {
	cfg := marketservice.DefaultConfig()
	cfg.Seed = 1234
	cfg.Instruments = []marketservice.Instrument{{Name: "Acme Works", Symbol: "ACME", Volatility: 0.5, BasePrice: 100}}
	cfg.MinStocks = 1
	cfg.BackfillDays = 0
	cfg.TrendProbability = 0

	clk := clock.New(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	mkt := marketservice.NewMarketService(cfg, rng.New(0), clk)
	ctl := NewController(DefaultConfig(), mkt, clk)
	mkt.AttachPortfolio(ctl)
	clk.Subscribe(mkt)
	mkt.SetReady(marketservice.ReadyClock)
	mkt.SetReady(marketservice.ReadyCatalog)
	mkt.SetReady(marketservice.ReadyPortfolio)

	acme, err := mkt.StockBySymbol("ACME")
	require.NoError(t, err)
	require.True(t, acme.Price.Equal(d("100")))

	clk.Advance(60)
	require.True(t, mkt.IsOpen())
	require.Len(t, ctl.PortfolioHistory(), 1)

	funds := ctl.AvailableFunds()
	order, ok := ctl.BuyLimitOrder(acme.ID, d("95"), 10)
	require.True(t, ok)
	assert.True(t, funds.Sub(ctl.AvailableFunds()).Equal(d("950")))

	require.True(t, acme.SetTrend(market.NewTrend(-10, acme.Price, 30)))

	for i := 0; i < 120 && len(ctl.PendingOrders()) > 0; i++ {
		clk.Advance(1)
	}

	require.Empty(t, ctl.PendingOrders())
	assert.False(t, ctl.CancelOrder(order.ID))
	assert.Equal(t, int64(10), ctl.Holding(acme.ID))

	var fill *TradeHistory
	for _, h := range ctl.TradeHistory() {
		if h.Symbol == "ACME" && h.Type == Buy {
			h := h
			fill = &h
		}
	}
	require.NotNil(t, fill)
	assert.Equal(t, int64(10), fill.Amount)
	assert.True(t, fill.Price.LessThanOrEqual(d("95")))
	assert.True(t, ctl.AvailableFunds().Equal(funds.Sub(market.RoundPrice(fill.Price.Mul(d("10"))))))
}
