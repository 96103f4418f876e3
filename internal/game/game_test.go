package game

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketservice "github.com/zappabad/stocksim/internal/market/service"
	"github.com/zappabad/stocksim/internal/simulation"
	"github.com/zappabad/stocksim/internal/snapshot"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func testConfig(t *testing.T, format string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Market.Instruments = cfg.Market.Instruments[:2]
	cfg.Market.MinStocks = 4
	cfg.Market.BackfillDays = 5
	cfg.Persistence.Format = format
	cfg.Persistence.Path = filepath.Join(t.TempDir(), "save."+format)
	return cfg
}

func newGame(t *testing.T, cfg Config) *Game {
	t.Helper()
	g, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Market.Seed, cfg.Market.Seed)
	assert.Equal(t, snapshot.FormatJSON, cfg.Format())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stocksim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
market:
  seed: 42
  closed_weekdays: [sun]
  instruments:
    - name: Acme Works
      symbol: ACME
      volatility: 0.3
      base_price: 12.5
persistence:
  format: sqlite
  path: saves/game.db
clock:
  start: 2024-03-04T08:00:00Z
  tick_interval: 100ms
simulation:
  days: 10
  fork_random: true
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Market.Seed)
	assert.Equal(t, []string{"sun"}, cfg.Market.ClosedWeekdays)
	require.Len(t, cfg.Market.Instruments, 1)
	assert.Equal(t, "ACME", cfg.Market.Instruments[0].Symbol)
	assert.Equal(t, snapshot.FormatSQLite, cfg.Format())
	assert.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), cfg.Clock.Start.UTC())
	assert.Equal(t, 100*time.Millisecond, cfg.Clock.TickInterval)
	assert.Equal(t, simulation.Config{Days: 10, ForkRandom: true}, cfg.Simulation)

	// untouched sections keep their defaults
	assert.Equal(t, 9, cfg.Market.OpeningHour)
	assert.Equal(t, DefaultConfig().Trade, cfg.Trade)
	assert.Equal(t, 1, cfg.Clock.MinutesPerTick)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"weekday": "market:\n  closed_weekdays: [funday]\n",
		"format":  "persistence:\n  format: xml\n",
		"hours":   "market:\n  opening_hour: 18\n  closing_hour: 9\n",
		"days":    "simulation:\n  days: 0\n",
		"muted":   "notify:\n  muted: [gossip]\n",
		"syntax":  "market: [",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadConfig(path)
			assert.ErrorIs(t, err, marketservice.ErrInvalidConfig)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, format := range []string{"csv", "json", "yaml", "sqlite"} {
		t.Run(format, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, format)

			g := newGame(t, cfg)
			require.NoError(t, g.Bootstrap())
			g.Advance(90)
			require.True(t, g.Session().State == marketservice.SessionOpen)

			q := g.Market().Quotes[0]
			require.True(t, g.InstantBuy(q.ID, 3))
			_, ok := g.BuyLimit(q.ID, decimal.NewFromInt(1), 2)
			require.True(t, ok)
			require.NoError(t, g.Save(ctx))

			other := newGame(t, cfg)
			require.NoError(t, other.Load(ctx))

			assert.Equal(t, g.Now(), other.Now())
			assert.Equal(t, g.Session(), other.Session())
			want, got := g.Portfolio(), other.Portfolio()
			assert.True(t, want.Worth.Equal(got.Worth))
			assert.True(t, want.Reserved.Equal(got.Reserved))
			assert.Len(t, got.Orders, 1)
			require.Len(t, got.Positions, 1)
			assert.Equal(t, int64(3), got.Positions[0].Amount)

			g.Advance(120)
			other.Advance(120)
			assert.True(t, g.Portfolio().Worth.Equal(other.Portfolio().Worth))
		})
	}
}

func TestLoadOrBootstrap(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "json")

	g := newGame(t, cfg)
	loaded, err := g.LoadOrBootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Len(t, g.Market().Quotes, 4)
	require.NoError(t, g.Save(ctx))

	again := newGame(t, cfg)
	loaded, err = again.LoadOrBootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)

	require.NoError(t, os.WriteFile(cfg.Persistence.Path, []byte("[{\"kind\":\"stock\"}]"), 0o644))
	fresh := newGame(t, cfg)
	loaded, err = fresh.LoadOrBootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Len(t, fresh.Market().Quotes, 4)
}

func TestFailedImportKeepsCurrentState(t *testing.T) {
	g := newGame(t, testConfig(t, "json"))
	require.NoError(t, g.Bootstrap())
	g.Advance(75)
	before := g.Portfolio()
	now := g.Now()

	recs, err := g.Export()
	require.NoError(t, err)
	recs[0].Control.Version = 7

	err = g.Import(recs)
	assert.ErrorIs(t, err, snapshot.ErrCorruptSnapshot)
	assert.Equal(t, now, g.Now())
	assert.True(t, before.Worth.Equal(g.Portfolio().Worth))
	assert.ErrorIs(t, g.Bootstrap(), marketservice.ErrAlreadyInitialized)
}

func TestDepositWithdraw(t *testing.T) {
	g := newGame(t, testConfig(t, "json"))
	require.NoError(t, g.Bootstrap())

	require.True(t, g.Deposit(decimal.NewFromInt(500)))
	p := g.Portfolio()
	assert.True(t, p.Funds.Equal(decimal.NewFromInt(10500)))
	assert.True(t, p.Balance.Equal(decimal.NewFromInt(49500)))

	assert.False(t, g.Withdraw(decimal.NewFromInt(1_000_000)))
	assert.True(t, g.Withdraw(decimal.NewFromInt(500)))
}

func TestSimulateLeavesGameAlone(t *testing.T) {
	g := newGame(t, testConfig(t, "json"))
	require.NoError(t, g.Bootstrap())
	now := g.Now()

	res, err := g.Simulate(simulation.Config{Days: 2, ForkRandom: true})
	require.NoError(t, err)
	assert.Equal(t, now, g.Now())
	assert.Equal(t, 2, res.Sessions())
}

func TestRunnerAndCommandsInterleave(t *testing.T) {
	cfg := testConfig(t, "json")
	cfg.Clock.TickInterval = time.Millisecond
	cfg.Clock.MinutesPerTick = 15

	g := newGame(t, cfg)
	require.NoError(t, g.Bootstrap())
	assert.True(t, g.Paused())
	g.Start()
	assert.False(t, g.Paused())

	id := g.Market().Quotes[0].ID
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				g.InstantBuy(id, 1)
				if o, ok := g.BuyLimit(id, decimal.NewFromInt(1), 1); ok {
					g.CancelOrder(o.ID)
				}
				_ = g.Portfolio()
				_ = g.Market()
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return g.Now().After(cfg.Clock.Start)
	}, time.Second, 5*time.Millisecond)

	g.SetPaused(true)
	assert.True(t, g.Paused())
	require.NoError(t, g.Close())

	p := g.Portfolio()
	assert.Empty(t, p.Orders)
	assert.True(t, p.Funds.GreaterThanOrEqual(decimal.Zero))
}
