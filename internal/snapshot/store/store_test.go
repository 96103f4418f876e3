package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stocksim/internal/snapshot"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func sampleRecords(price string) []snapshot.Record {
	p := decimal.RequireFromString(price)
	closed := p.Add(decimal.NewFromInt(1))
	return []snapshot.Record{
		{Kind: snapshot.KindControl, Control: &snapshot.ControlRecord{
			Version:     snapshot.Version,
			Clock:       day.Add(9 * time.Hour),
			Session:     "open",
			SessionDay:  day,
			LastOpenDay: day,
			Random:      "AAEC",
			Trade:       `{"available_funds":"10000"}`,
		}},
		{Kind: snapshot.KindStock, Stock: &snapshot.StockRecord{
			ID: 1, Name: "Acme Works", Symbol: "ACME",
			Volatility: decimal.RequireFromString("0.4"),
			Price:      p, Open: p, High: p, Low: p,
			Trend: &snapshot.TrendRecord{Percentage: -4, Start: p, End: p.Sub(decimal.NewFromInt(4)), Steps: 90, Step: 12},
		}},
		{Kind: snapshot.KindHistory, History: &snapshot.HistoryRecord{
			StockID: 1, Date: day.AddDate(0, 0, -1), Open: p, Close: &closed, High: closed, Low: p, TrendPercentage: 3,
		}},
	}
}

func assertSameRecords(t *testing.T, want, got []snapshot.Record) {
	t.Helper()
	require.Len(t, got, len(want))
	assert.Equal(t, *want[0].Control, *got[0].Control)

	ws, gs := want[1].Stock, got[1].Stock
	assert.Equal(t, ws.Symbol, gs.Symbol)
	assert.True(t, ws.Price.Equal(gs.Price))
	require.NotNil(t, gs.Trend)
	assert.Equal(t, ws.Trend.Step, gs.Trend.Step)
	assert.True(t, ws.Trend.End.Equal(gs.Trend.End))
	assert.Nil(t, gs.Close)

	wh, gh := want[2].History, got[2].History
	assert.Equal(t, wh.Date, gh.Date)
	require.NotNil(t, gh.Close)
	assert.True(t, wh.Close.Equal(*gh.Close))
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, f := range []snapshot.Format{snapshot.FormatCSV, snapshot.FormatJSON, snapshot.FormatYAML, snapshot.FormatSQLite} {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "saves", "game."+string(f))
			st, err := Open(f, path)
			require.NoError(t, err)
			defer st.Close()

			_, err = st.Load(ctx)
			assert.ErrorIs(t, err, ErrNoSnapshot)

			require.NoError(t, st.Save(ctx, sampleRecords("10.25")))
			second := sampleRecords("99.5")
			require.NoError(t, st.Save(ctx, second))

			got, err := st.Load(ctx)
			require.NoError(t, err)
			assertSameRecords(t, second, got)
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(snapshot.JSONCodec{}, filepath.Join(dir, "game.json"))
	require.NoError(t, st.Save(context.Background(), sampleRecords("1")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "game.json", entries[0].Name())
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := NewFileStore(snapshot.JSONCodec{}, path).Load(context.Background())
	assert.ErrorIs(t, err, snapshot.ErrCorruptSnapshot)
}

func TestSQLiteSavedAt(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	defer st.Close()

	_, err = st.SavedAt(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, st.Save(ctx, sampleRecords("5")))
	at, err := st.SavedAt(ctx)
	require.NoError(t, err)
	assert.False(t, at.IsZero())
}

func TestOpenUnknownFormat(t *testing.T) {
	_, err := Open(snapshot.Format("xml"), filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, snapshot.ErrUnknownFormat)
}
