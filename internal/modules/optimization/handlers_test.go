package optimization

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// MockMarketData for testing
type MockMarketData struct {
	matrix     *domain.PriceMatrix
	shouldFail bool
	requested  []string
}

func (m *MockMarketData) Fetch(ctx context.Context, symbols []string, start, end time.Time) (*domain.PriceMatrix, error) {
	m.requested = symbols
	if m.shouldFail {
		return nil, &domain.DataUnavailableError{Symbol: symbols[0], Reason: "mock fetch error"}
	}
	return m.matrix, nil
}

func postOptimize(t *testing.T, handler *Handler, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/optimize", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleOptimize(w, req)
	return w
}

func TestHandleOptimizeEqualWeight(t *testing.T) {
	source := &MockMarketData{matrix: testMatrix(t, []string{"AAA", "BBB"}, map[string][]float64{
		"AAA": pricesFromReturns(100, []float64{0.01, -0.01, 0.02, -0.02, 0.01}),
		"BBB": pricesFromReturns(100, []float64{-0.02, 0.03, -0.01, 0.02, -0.03}),
	})}
	handler := NewHandler(source, 0.02, zerolog.Nop())

	w := postOptimize(t, handler, OptimizeRequest{
		Symbols:   []string{"AAA", "BBB"},
		Objective: "equal_weight",
		Start:     "2024-01-02",
		End:       "2024-01-07",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{"AAA", "BBB"}, source.requested)

	var resp OptimizeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	require.NotNil(t, resp.Result)
	assert.Equal(t, 0.5, resp.Result.Weights["AAA"])
	assert.Equal(t, 0.5, resp.Result.Weights["BBB"])
	assert.Equal(t, []string{"AAA", "BBB"}, resp.Symbols)
	assert.Equal(t, 5, resp.Observations)
	assert.Equal(t, 0.02, resp.RiskFreeRate)
	assert.Equal(t, "2024-01-02..2024-01-07", resp.Window)

	require.Len(t, resp.CorrelationMatrix, 2)
	require.Len(t, resp.CorrelationMatrix[0], 2)
	assert.InDelta(t, 1.0, resp.CorrelationMatrix[0][0], 1e-9)
	assert.InDelta(t, 1.0, resp.CorrelationMatrix[1][1], 1e-9)
	assert.Equal(t, resp.CorrelationMatrix[0][1], resp.CorrelationMatrix[1][0])
}

func TestHandleOptimizeRiskFreeOverride(t *testing.T) {
	source := &MockMarketData{matrix: testMatrix(t, []string{"AAA", "BBB"}, map[string][]float64{
		"AAA": pricesFromReturns(100, []float64{0.01, -0.01, 0.01}),
		"BBB": pricesFromReturns(100, []float64{0.02, -0.02, 0.02}),
	})}
	handler := NewHandler(source, 0.02, zerolog.Nop())

	rf := 0.05
	w := postOptimize(t, handler, OptimizeRequest{
		Symbols:      []string{"AAA", "BBB"},
		Objective:    "equal_weight",
		RiskFreeRate: &rf,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp OptimizeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 0.05, resp.RiskFreeRate)
}

func TestHandleOptimizeFetchFailure(t *testing.T) {
	source := &MockMarketData{shouldFail: true}
	handler := NewHandler(source, 0, zerolog.Nop())

	w := postOptimize(t, handler, OptimizeRequest{
		Symbols:   []string{"AAA"},
		Objective: "max_sharpe",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleOptimizeInsufficientHistory(t *testing.T) {
	// One date yields zero return observations
	source := &MockMarketData{matrix: testMatrix(t, []string{"AAA"}, map[string][]float64{
		"AAA": {100},
	})}
	handler := NewHandler(source, 0, zerolog.Nop())

	w := postOptimize(t, handler, OptimizeRequest{
		Symbols:   []string{"AAA"},
		Objective: "min_volatility",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleOptimizeRejectsUnknownObjective(t *testing.T) {
	handler := NewHandler(&MockMarketData{}, 0, zerolog.Nop())

	w := postOptimize(t, handler, OptimizeRequest{
		Symbols:   []string{"AAA"},
		Objective: "max_profit",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleOptimizeRejectsBadDates(t *testing.T) {
	handler := NewHandler(&MockMarketData{}, 0, zerolog.Nop())

	w := postOptimize(t, handler, OptimizeRequest{
		Symbols:   []string{"AAA"},
		Objective: "max_sharpe",
		Start:     "02/01/2024",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp["error"], "YYYY-MM-DD")
}

func TestHandleOptimizeRejectsBadBody(t *testing.T) {
	handler := NewHandler(&MockMarketData{}, 0, zerolog.Nop())

	req := httptest.NewRequest("POST", "/api/optimize", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler.HandleOptimize(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
