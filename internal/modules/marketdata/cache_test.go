package marketdata

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func setupCacheTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db))
	return db
}

func testCache(t *testing.T) *Cache {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewCache(setupCacheTestDB(t), log)
}

func barsFixture() []PriceBar {
	vol := int64(1000)
	return []PriceBar{
		{Date: "2024-01-02", Open: 100, High: 101, Low: 99, Close: 100.5, AdjClose: 100.5, Volume: &vol},
		{Date: "2024-01-03", Open: 100.5, High: 102, Low: 100, Close: 101.5, AdjClose: 101.5, Volume: &vol},
		{Date: "2024-01-04", Open: 101.5, High: 103, Low: 101, Close: 102.5, AdjClose: 102.5, Volume: &vol},
	}
}

func TestUpsertAndGetBars(t *testing.T) {
	cache := testCache(t)

	require.NoError(t, cache.UpsertBars("AAPL", barsFixture()))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	bars, err := cache.GetBars("AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, "2024-01-02", bars[0].Date)
	assert.Equal(t, "2024-01-04", bars[2].Date)
	assert.Equal(t, 102.5, bars[2].Close)
	require.NotNil(t, bars[0].Volume)
	assert.Equal(t, int64(1000), *bars[0].Volume)
}

func TestGetBarsRangeFilter(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.UpsertBars("AAPL", barsFixture()))

	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	bars, err := cache.GetBars("AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-01-03", bars[0].Date)
}

func TestUpsertBarsReplacesExisting(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.UpsertBars("AAPL", barsFixture()))

	updated := []PriceBar{
		{Date: "2024-01-02", Open: 100, High: 105, Low: 99, Close: 104, AdjClose: 104},
	}
	require.NoError(t, cache.UpsertBars("AAPL", updated))

	cov, err := cache.GetCoverage("AAPL")
	require.NoError(t, err)
	require.NotNil(t, cov)
	assert.Equal(t, 3, cov.Count)

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars, err := cache.GetBars("AAPL", start, start)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 104.0, bars[0].Close)
}

func TestGetCoverage(t *testing.T) {
	cache := testCache(t)

	cov, err := cache.GetCoverage("MISSING")
	require.NoError(t, err)
	assert.Nil(t, cov)

	require.NoError(t, cache.UpsertBars("AAPL", barsFixture()))

	cov, err = cache.GetCoverage("AAPL")
	require.NoError(t, err)
	require.NotNil(t, cov)
	assert.Equal(t, "2024-01-02", cov.FirstDate)
	assert.Equal(t, "2024-01-04", cov.LastDate)
	assert.Equal(t, 3, cov.Count)
}

func TestSymbols(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.UpsertBars("MSFT", barsFixture()))
	require.NoError(t, cache.UpsertBars("AAPL", barsFixture()))

	symbols, err := cache.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestLatestBar(t *testing.T) {
	cache := testCache(t)

	bar, err := cache.LatestBar("AAPL")
	require.NoError(t, err)
	assert.Nil(t, bar)

	require.NoError(t, cache.UpsertBars("AAPL", barsFixture()))

	bar, err = cache.LatestBar("AAPL")
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, "2024-01-04", bar.Date)
	assert.Equal(t, 102.5, bar.Close)
}
