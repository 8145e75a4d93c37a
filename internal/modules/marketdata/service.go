package marketdata

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/clients/yahoo"
	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// coverageGraceDays is the slack allowed between a requested range and
// the cached range before the remote source is consulted again. It
// absorbs exchange holidays and symbols that started trading shortly
// after the requested start.
const coverageGraceDays = 7

// HistoryClient fetches remote daily bars. Satisfied by yahoo.Client.
type HistoryClient interface {
	DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]yahoo.DailyBar, error)
}

// Service assembles aligned price matrices from the local cache,
// falling back to the remote source for ranges not yet cached.
type Service struct {
	cache  *Cache
	client HistoryClient
	log    zerolog.Logger
}

// NewService creates a new market data service
func NewService(cache *Cache, client HistoryClient, log zerolog.Logger) *Service {
	return &Service{
		cache:  cache,
		client: client,
		log:    log.With().Str("service", "marketdata").Logger(),
	}
}

// Fetch returns an aligned price matrix for the given symbols over
// [start, end]. The matrix calendar is the union of all per-symbol
// trading dates; gaps are forward-filled from the previous close and
// leading gaps back-filled from the first available close. Adjusted
// closes are used so splits and dividends do not show up as returns.
// A symbol with no usable data in the range yields a
// domain.DataUnavailableError.
func (s *Service) Fetch(ctx context.Context, symbols []string, start, end time.Time) (*domain.PriceMatrix, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols given")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start %s is not before end %s",
			start.Format(domain.DateFormat), end.Format(domain.DateFormat))
	}

	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		if sym == "" {
			return nil, fmt.Errorf("empty symbol")
		}
		if seen[sym] {
			return nil, fmt.Errorf("duplicate symbol %q", sym)
		}
		seen[sym] = true
	}

	barsBySymbol := make(map[string][]PriceBar, len(symbols))
	calendar := make(map[string]bool)

	for _, sym := range symbols {
		bars, err := s.ensureCached(ctx, sym, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, &domain.DataUnavailableError{Symbol: sym, Reason: "no data in requested range"}
		}

		barsBySymbol[sym] = bars
		for _, b := range bars {
			calendar[b.Date] = true
		}
	}

	dateStrs := make([]string, 0, len(calendar))
	for d := range calendar {
		dateStrs = append(dateStrs, d)
	}
	sort.Strings(dateStrs)

	dates := make([]time.Time, len(dateStrs))
	for i, d := range dateStrs {
		t, err := time.Parse(domain.DateFormat, d)
		if err != nil {
			return nil, fmt.Errorf("malformed cached date %q: %w", d, err)
		}
		dates[i] = t
	}

	prices := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		series := fillSeries(dateStrs, barsBySymbol[sym])
		if series == nil {
			return nil, &domain.DataUnavailableError{Symbol: sym, Reason: "no usable observations"}
		}
		prices[sym] = series
	}

	matrix, err := domain.NewPriceMatrix(dates, symbols, prices)
	if err != nil {
		return nil, fmt.Errorf("failed to build price matrix: %w", err)
	}

	s.log.Debug().
		Strs("symbols", symbols).
		Int("dates", matrix.NumDates()).
		Msg("Assembled price matrix")

	return matrix, nil
}

// LatestPrices returns the most recent unadjusted close per symbol.
// Unadjusted closes are the prices trades would actually execute at.
func (s *Service) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(symbols))

	for _, sym := range symbols {
		bar, err := s.cache.LatestBar(sym)
		if err != nil {
			return nil, err
		}

		if bar == nil {
			// Populate the cache from the last month of trading
			end := time.Now().UTC()
			if _, err := s.ensureCached(ctx, sym, end.AddDate(0, -1, 0), end); err != nil {
				return nil, err
			}
			bar, err = s.cache.LatestBar(sym)
			if err != nil {
				return nil, err
			}
		}

		if bar == nil {
			return nil, &domain.DataUnavailableError{Symbol: sym, Reason: "no recent price available"}
		}

		prices[sym] = bar.Close
	}

	return prices, nil
}

// RefreshCached updates every cached symbol with bars through today.
// Per-symbol failures are logged and skipped so one dead ticker does
// not starve the rest. Returns the number of symbols refreshed.
func (s *Service) RefreshCached(ctx context.Context) (int, error) {
	symbols, err := s.cache.Symbols()
	if err != nil {
		return 0, fmt.Errorf("failed to list cached symbols: %w", err)
	}

	now := time.Now().UTC()
	refreshed := 0

	for _, sym := range symbols {
		cov, err := s.cache.GetCoverage(sym)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("Failed to read coverage")
			continue
		}

		start := now.AddDate(0, -1, 0)
		if cov != nil {
			last, err := time.Parse(domain.DateFormat, cov.LastDate)
			if err == nil {
				// Re-fetch a few trailing days to pick up restated bars
				start = last.AddDate(0, 0, -5)
			}
		}

		if err := s.fetchAndStore(ctx, sym, start, now); err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("Failed to refresh symbol")
			continue
		}
		refreshed++
	}

	s.log.Info().
		Int("refreshed", refreshed).
		Int("total", len(symbols)).
		Msg("Price cache refresh completed")

	return refreshed, nil
}

// Coverage reports the cached range for a symbol
func (s *Service) Coverage(symbol string) (*Coverage, error) {
	return s.cache.GetCoverage(symbol)
}

// ensureCached returns cached bars for [start, end], consulting the
// remote source first when the cached range does not cover the request
func (s *Service) ensureCached(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	cov, err := s.cache.GetCoverage(symbol)
	if err != nil {
		return nil, err
	}

	needsFetch := cov == nil ||
		cov.FirstDate > start.AddDate(0, 0, coverageGraceDays).Format(domain.DateFormat) ||
		cov.LastDate < end.AddDate(0, 0, -coverageGraceDays).Format(domain.DateFormat)

	if needsFetch {
		if err := s.fetchAndStore(ctx, symbol, start, end); err != nil {
			// Serve stale data if the cache has any for the range
			if cov == nil {
				return nil, err
			}
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Remote fetch failed, serving cached bars")
		}
	}

	return s.cache.GetBars(symbol, start, end)
}

func (s *Service) fetchAndStore(ctx context.Context, symbol string, start, end time.Time) error {
	remote, err := s.client.DailyHistory(ctx, symbol, start, end)
	if err != nil {
		return err
	}

	bars := make([]PriceBar, 0, len(remote))
	for _, rb := range remote {
		volume := rb.Volume
		bars = append(bars, PriceBar{
			Date:     rb.Date.Format(domain.DateFormat),
			Open:     rb.Open,
			High:     rb.High,
			Low:      rb.Low,
			Close:    rb.Close,
			AdjClose: rb.AdjClose,
			Volume:   &volume,
		})
	}

	return s.cache.UpsertBars(symbol, bars)
}

// fillSeries projects bars onto the shared calendar. Dates without an
// observation carry the previous adjusted close forward; dates before
// the first observation take the first adjusted close. Returns nil when
// the symbol has no observations at all.
func fillSeries(dates []string, bars []PriceBar) []float64 {
	byDate := make(map[string]float64, len(bars))
	for _, b := range bars {
		byDate[b.Date] = b.AdjClose
	}

	series := make([]float64, len(dates))
	last := math.NaN()
	for i, d := range dates {
		if v, ok := byDate[d]; ok {
			last = v
		}
		series[i] = last
	}

	firstObserved := -1
	for i := range series {
		if !math.IsNaN(series[i]) {
			firstObserved = i
			break
		}
	}
	if firstObserved < 0 {
		return nil
	}
	for i := 0; i < firstObserved; i++ {
		series[i] = series[firstObserved]
	}

	return series
}
