package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leenamkee/quant-portfolio/internal/clients/yahoo"
	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// fakeHistoryClient serves canned bars and records which symbols were
// requested remotely
type fakeHistoryClient struct {
	bars     map[string][]yahoo.DailyBar
	err      error
	requests []string
}

func (f *fakeHistoryClient) DailyHistory(_ context.Context, symbol string, _, _ time.Time) ([]yahoo.DailyBar, error) {
	f.requests = append(f.requests, symbol)
	if f.err != nil {
		return nil, f.err
	}
	if bars, ok := f.bars[symbol]; ok {
		return bars, nil
	}
	return nil, &domain.DataUnavailableError{Symbol: symbol, Reason: "unknown symbol"}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func dailyBar(d int, close float64) yahoo.DailyBar {
	return yahoo.DailyBar{Date: day(d), Open: close, High: close, Low: close, Close: close, AdjClose: close}
}

func testService(t *testing.T, client HistoryClient) *Service {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cache := NewCache(setupCacheTestDB(t), log)
	return NewService(cache, client, log)
}

func TestFetchBuildsAlignedMatrix(t *testing.T) {
	client := &fakeHistoryClient{bars: map[string][]yahoo.DailyBar{
		"AAA": {dailyBar(2, 100), dailyBar(3, 110), dailyBar(4, 121)},
		"BBB": {dailyBar(2, 100), dailyBar(3, 95), dailyBar(4, 90)},
	}}
	svc := testService(t, client)

	matrix, err := svc.Fetch(context.Background(), []string{"AAA", "BBB"}, day(1), day(31))
	require.NoError(t, err)

	assert.Equal(t, 3, matrix.NumDates())
	assert.Equal(t, []string{"AAA", "BBB"}, matrix.Symbols)
	assert.Equal(t, []float64{100, 110, 121}, matrix.Prices["AAA"])
	assert.Equal(t, []float64{100, 95, 90}, matrix.Prices["BBB"])
}

func TestFetchForwardFillsInteriorGaps(t *testing.T) {
	// BBB is missing Jan 3, its Jan 2 close should carry forward
	client := &fakeHistoryClient{bars: map[string][]yahoo.DailyBar{
		"AAA": {dailyBar(2, 100), dailyBar(3, 110), dailyBar(4, 121)},
		"BBB": {dailyBar(2, 50), dailyBar(4, 55)},
	}}
	svc := testService(t, client)

	matrix, err := svc.Fetch(context.Background(), []string{"AAA", "BBB"}, day(1), day(31))
	require.NoError(t, err)

	assert.Equal(t, []float64{50, 50, 55}, matrix.Prices["BBB"])
}

func TestFetchBackFillsLeadingGaps(t *testing.T) {
	// BBB starts trading on Jan 3, its first close covers Jan 2
	client := &fakeHistoryClient{bars: map[string][]yahoo.DailyBar{
		"AAA": {dailyBar(2, 100), dailyBar(3, 110), dailyBar(4, 121)},
		"BBB": {dailyBar(3, 40), dailyBar(4, 42)},
	}}
	svc := testService(t, client)

	matrix, err := svc.Fetch(context.Background(), []string{"AAA", "BBB"}, day(1), day(31))
	require.NoError(t, err)

	assert.Equal(t, []float64{40, 40, 42}, matrix.Prices["BBB"])
}

func TestFetchUnknownSymbolReturnsDataUnavailable(t *testing.T) {
	client := &fakeHistoryClient{bars: map[string][]yahoo.DailyBar{
		"AAA": {dailyBar(2, 100), dailyBar(3, 110)},
	}}
	svc := testService(t, client)

	_, err := svc.Fetch(context.Background(), []string{"AAA", "NOPE"}, day(1), day(31))
	require.Error(t, err)

	var unavailable *domain.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "NOPE", unavailable.Symbol)
}

func TestFetchValidatesInput(t *testing.T) {
	svc := testService(t, &fakeHistoryClient{})

	_, err := svc.Fetch(context.Background(), nil, day(1), day(31))
	assert.Error(t, err)

	_, err = svc.Fetch(context.Background(), []string{"AAA", "AAA"}, day(1), day(31))
	assert.Error(t, err)

	_, err = svc.Fetch(context.Background(), []string{"AAA"}, day(31), day(1))
	assert.Error(t, err)
}

func TestFetchServesFromCacheWithoutRefetch(t *testing.T) {
	client := &fakeHistoryClient{bars: map[string][]yahoo.DailyBar{
		"AAA": {dailyBar(2, 100), dailyBar(3, 110), dailyBar(4, 121)},
	}}
	svc := testService(t, client)

	_, err := svc.Fetch(context.Background(), []string{"AAA"}, day(2), day(4))
	require.NoError(t, err)
	require.Len(t, client.requests, 1)

	// Same range again, cache coverage should satisfy it
	_, err = svc.Fetch(context.Background(), []string{"AAA"}, day(2), day(4))
	require.NoError(t, err)
	assert.Len(t, client.requests, 1)
}

func TestLatestPrices(t *testing.T) {
	client := &fakeHistoryClient{bars: map[string][]yahoo.DailyBar{
		"AAA": {dailyBar(2, 100), dailyBar(4, 121)},
	}}
	svc := testService(t, client)

	prices, err := svc.LatestPrices(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	assert.Equal(t, 121.0, prices["AAA"])

	_, err = svc.LatestPrices(context.Background(), []string{"NOPE"})
	require.Error(t, err)

	var unavailable *domain.DataUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestRefreshCached(t *testing.T) {
	client := &fakeHistoryClient{bars: map[string][]yahoo.DailyBar{
		"AAA": {dailyBar(2, 100), dailyBar(3, 110)},
	}}
	svc := testService(t, client)

	// Seed the cache
	_, err := svc.Fetch(context.Background(), []string{"AAA"}, day(1), day(31))
	require.NoError(t, err)

	refreshed, err := svc.RefreshCached(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
}
