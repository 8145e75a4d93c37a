package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// highCorrelationThreshold flags asset pairs whose correlation makes the
// covariance matrix borderline for the solver
const highCorrelationThreshold = 0.8

// MarketData supplies aligned price history for the requested assets.
// Satisfied by *marketdata.Service.
type MarketData interface {
	Fetch(ctx context.Context, symbols []string, start, end time.Time) (*domain.PriceMatrix, error)
}

// OptimizeRequest is the payload for POST /api/optimize.
type OptimizeRequest struct {
	Symbols       []string     `json:"symbols"`
	Start         string       `json:"start,omitempty"`
	End           string       `json:"end,omitempty"`
	Objective     string       `json:"objective"`
	Periodicity   string       `json:"periodicity,omitempty"`
	RiskFreeRate  *float64     `json:"risk_free_rate,omitempty"`
	UseLogReturns bool         `json:"use_log_returns,omitempty"`
	LedoitWolf    bool         `json:"ledoit_wolf,omitempty"`
	Constraints   *Constraints `json:"constraints,omitempty"`
}

// OptimizeResponse carries the solved weights plus the diagnostics a
// caller needs to judge them. CorrelationMatrix rows follow the Symbols
// ordering.
type OptimizeResponse struct {
	Result            *Result           `json:"result"`
	Window            string            `json:"window"`
	Observations      int               `json:"observations"`
	RiskFreeRate      float64           `json:"risk_free_rate"`
	Symbols           []string          `json:"symbols"`
	CorrelationMatrix [][]float64       `json:"correlation_matrix"`
	HighCorrelations  []CorrelationPair `json:"high_correlations,omitempty"`
}

// Handler handles HTTP requests for the optimization module.
type Handler struct {
	marketData   MarketData
	riskFreeRate float64
	log          zerolog.Logger
}

// NewHandler creates a new optimization handler. riskFreeRate is the
// default used when a request does not override it.
func NewHandler(marketData MarketData, riskFreeRate float64, log zerolog.Logger) *Handler {
	return &Handler{
		marketData:   marketData,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "optimization_handler").Logger(),
	}
}

// HandleOptimize handles POST /api/optimize - solves for portfolio
// weights over a historical window.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	objective, err := domain.ParseObjective(req.Objective)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	periodicity, err := domain.ParsePeriodicity(req.Periodicity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if req.End != "" {
		end, err = time.Parse(domain.DateFormat, req.End)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD")
			return
		}
	}

	start := end.AddDate(-1, 0, 0)
	if req.Start != "" {
		start, err = time.Parse(domain.DateFormat, req.Start)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD")
			return
		}
	}

	rf := h.riskFreeRate
	if req.RiskFreeRate != nil {
		rf = *req.RiskFreeRate
	}

	constraints := DefaultConstraints()
	if req.Constraints != nil {
		constraints = *req.Constraints
	}

	h.log.Info().
		Strs("symbols", req.Symbols).
		Str("objective", string(objective)).
		Str("start", start.Format(domain.DateFormat)).
		Str("end", end.Format(domain.DateFormat)).
		Msg("Running portfolio optimization")

	matrix, err := h.marketData.Fetch(r.Context(), req.Symbols, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Price fetch failed")
		h.writeDomainError(w, err)
		return
	}

	stats, err := ComputeStatistics(matrix, periodicity, StatisticsOptions{
		UseLogReturns: req.UseLogReturns,
		LedoitWolf:    req.LedoitWolf,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Return statistics failed")
		h.writeDomainError(w, err)
		return
	}

	optimizer := NewOptimizer(rf, h.log)
	result, err := optimizer.Optimize(stats, objective, constraints)
	if err != nil {
		h.log.Error().Err(err).Msg("Optimization failed")
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, OptimizeResponse{
		Result:            result,
		Window:            windowLabel(matrix),
		Observations:      stats.Observations,
		RiskFreeRate:      rf,
		Symbols:           stats.Symbols,
		CorrelationMatrix: correlationRows(stats),
		HighCorrelations:  stats.HighCorrelations(highCorrelationThreshold),
	})
}

// correlationRows flattens the correlation matrix for the JSON contract
func correlationRows(stats *ReturnStatistics) [][]float64 {
	corr := stats.CorrelationMatrix()
	n := len(stats.Symbols)
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = corr.At(i, j)
		}
	}
	return rows
}

// writeDomainError maps domain failures to HTTP statuses: unusable
// inputs are 422, upstream data failures 502, everything else 400.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientDataError
	var infeasible *domain.InfeasibleConstraintsError
	var divergence *domain.SolverDivergenceError
	var unavailable *domain.DataUnavailableError

	switch {
	case errors.As(err, &insufficient), errors.As(err, &infeasible), errors.As(err, &divergence):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &unavailable):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.writeError(w, http.StatusBadRequest, err.Error())
	}
}

// HTTP helpers

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
