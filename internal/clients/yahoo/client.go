package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	maxRetries     = 3
)

// Client is a Yahoo Finance chart API client. Requests are throttled
// through a shared rate limiter so bulk history fetches stay under
// Yahoo's unofficial request ceiling.
type Client struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. reqPerSec bounds the
// sustained request rate; burst is fixed at the same value.
func NewClient(baseURL string, reqPerSec float64, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if reqPerSec <= 0 {
		reqPerSec = 2.0
	}
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(reqPerSec), int(reqPerSec)+1),
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// DailyHistory fetches daily bars for a symbol over [start, end], both
// inclusive. Bars come from the chart API with adjusted closes when
// Yahoo provides them. Transport failures are retried with exponential
// backoff; a symbol Yahoo does not know yields a
// domain.DataUnavailableError.
func (c *Client) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]DailyBar, error) {
	if symbol == "" {
		return nil, &domain.DataUnavailableError{Symbol: symbol, Reason: "empty symbol"}
	}

	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("period1", fmt.Sprintf("%d", start.Unix()))
	// period2 is exclusive on the Yahoo side, push it one day past end
	params.Add("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	params.Add("events", "history")
	params.Add("includeAdjustedClose", "true")

	reqURL := c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		result, retryable, err := c.fetchChart(ctx, reqURL)
		if err == nil {
			return c.decodeBars(symbol, result), nil
		}

		lastErr = err
		if !retryable || attempt == maxRetries-1 {
			break
		}

		waitTime := time.Duration(1<<uint(attempt)) * time.Second // exponential backoff
		c.log.Warn().Err(err).
			Str("symbol", symbol).
			Int("attempt", attempt+1).
			Dur("wait", waitTime).
			Msg("Failed to fetch history, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return nil, &domain.DataUnavailableError{Symbol: symbol, Reason: lastErr.Error()}
}

// fetchChart performs a single chart API request. The second return
// value reports whether the failure is worth retrying.
func (c *Client) fetchChart(ctx context.Context, reqURL string) (*chartResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to fetch chart data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, false, fmt.Errorf("Yahoo Finance API error: %s (%s)",
			result.Chart.Error.Description, result.Chart.Error.Code)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, false, fmt.Errorf("no chart data returned")
	}

	return &result, false, nil
}

// decodeBars flattens the chart payload into daily bars. Yahoo pads
// holidays with zeroed entries; those are dropped here, cross-sectional
// alignment happens later in the market data service.
func (c *Client) decodeBars(symbol string, result *chartResponse) []DailyBar {
	chartData := result.Chart.Result[0]
	timestamps := chartData.Timestamp
	quote := chartData.Indicators.Quote[0]

	var adjCloseData []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloseData = chartData.Indicators.AdjClose[0].AdjClose
	}

	var bars []DailyBar
	for i := range timestamps {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}

		// Yahoo sometimes returns null values
		if quote.Close[i] <= 0 {
			continue
		}

		adjClose := quote.Close[i] // default to close
		if i < len(adjCloseData) && adjCloseData[i] > 0 {
			adjClose = adjCloseData[i]
		}

		volume := int64(0)
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}

		// Timestamps are at session open in exchange-local time,
		// truncate to the calendar date
		t := time.Unix(timestamps[i], 0).UTC()
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

		bars = append(bars, DailyBar{
			Date:     date,
			Open:     quote.Open[i],
			High:     quote.High[i],
			Low:      quote.Low[i],
			Close:    quote.Close[i],
			AdjClose: adjClose,
			Volume:   volume,
		})
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("count", len(bars)).
		Msg("Fetched daily history")

	return bars
}
