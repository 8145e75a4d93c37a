package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/analytics"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
)

// MarketData supplies aligned price history for the requested assets.
// Satisfied by *marketdata.Service.
type MarketData interface {
	Fetch(ctx context.Context, symbols []string, start, end time.Time) (*domain.PriceMatrix, error)
}

// Handler handles HTTP requests for the backtest module.
type Handler struct {
	marketData   MarketData
	repo         *Repository
	riskFreeRate float64
	log          zerolog.Logger
}

// NewHandler creates a new backtest handler. riskFreeRate is the
// default used when a request does not override it.
func NewHandler(marketData MarketData, repo *Repository, riskFreeRate float64, log zerolog.Logger) *Handler {
	return &Handler{
		marketData:   marketData,
		repo:         repo,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "backtest_handler").Logger(),
	}
}

// HandleRunBacktest handles POST /api/backtest - simulates periodic
// re-optimization over a historical window, persists the run and
// returns it.
func (h *Handler) HandleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	objective, err := domain.ParseObjective(req.Objective)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	frequency, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	periodicity, err := domain.ParsePeriodicity(req.Periodicity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	capital := req.StartCapital
	if capital == 0 {
		capital = defaultStartCapital
	}
	if capital < 0 {
		h.writeError(w, http.StatusBadRequest, "start_capital must be positive")
		return
	}

	rf := h.riskFreeRate
	if req.RiskFreeRate != nil {
		rf = *req.RiskFreeRate
	}
	constraints := optimization.DefaultConstraints()
	if req.Constraints != nil {
		constraints = *req.Constraints
	}

	h.log.Info().
		Strs("symbols", req.Symbols).
		Str("objective", string(objective)).
		Str("frequency", string(frequency)).
		Msg("Running backtest")

	matrix, err := h.marketData.Fetch(r.Context(), req.Symbols, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Price fetch failed")
		h.writeDomainError(w, err)
		return
	}

	simulator := NewSimulator(optimization.NewOptimizer(rf, h.log), h.log)
	result, err := simulator.Simulate(matrix, objective, frequency, capital, SimOptions{
		MinLookback: req.MinLookback,
		Periodicity: periodicity,
		Constraints: constraints,
		Statistics: optimization.StatisticsOptions{
			UseLogReturns: req.UseLogReturns,
			LedoitWolf:    req.LedoitWolf,
		},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Simulation failed")
		h.writeDomainError(w, err)
		return
	}

	report, err := analytics.Analyze(result.Trajectory, periodicity, rf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Kind:      RunKindOptimized,
		Params: RunParams{
			Symbols:      matrix.Symbols,
			Start:        start.Format(domain.DateFormat),
			End:          end.Format(domain.DateFormat),
			Objective:    string(objective),
			Frequency:    string(frequency),
			StartCapital: capital,
			RiskFreeRate: rf,
		},
		Report:     report,
		Holdings:   result.Holdings,
		Trajectory: result.Trajectory,
	}
	h.respondWithRun(w, run, result)
}

// HandleCustomBacktest handles POST /api/backtest/custom - replays a
// fixed target allocation at the chosen frequency.
func (h *Handler) HandleCustomBacktest(w http.ResponseWriter, r *http.Request) {
	var req CustomBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Weights) == 0 {
		h.writeError(w, http.StatusBadRequest, "weights are required")
		return
	}

	frequency, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	periodicity, err := domain.ParsePeriodicity(req.Periodicity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	capital := req.StartCapital
	if capital == 0 {
		capital = defaultStartCapital
	}
	rf := h.riskFreeRate
	if req.RiskFreeRate != nil {
		rf = *req.RiskFreeRate
	}

	weights := domain.WeightVector(req.Weights)
	symbols := weights.Symbols()

	matrix, err := h.marketData.Fetch(r.Context(), symbols, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Price fetch failed")
		h.writeDomainError(w, err)
		return
	}

	simulator := NewSimulator(optimization.NewOptimizer(rf, h.log), h.log)
	result, err := simulator.SimulateFixed(matrix, weights, frequency, capital)
	if err != nil {
		h.log.Error().Err(err).Msg("Custom simulation failed")
		h.writeDomainError(w, err)
		return
	}

	report, err := analytics.Analyze(result.Trajectory, periodicity, rf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Kind:      RunKindCustom,
		Params: RunParams{
			Symbols:      matrix.Symbols,
			Start:        start.Format(domain.DateFormat),
			End:          end.Format(domain.DateFormat),
			Frequency:    string(frequency),
			StartCapital: capital,
			RiskFreeRate: rf,
			Weights:      req.Weights,
		},
		Report:     report,
		Holdings:   result.Holdings,
		Trajectory: result.Trajectory,
	}
	h.respondWithRun(w, run, result)
}

// HandleCompare handles POST /api/backtest/compare - runs several
// objective/frequency variants over the same window in parallel.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Variants) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one variant is required")
		return
	}

	periodicity, err := domain.ParsePeriodicity(req.Periodicity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	capital := req.StartCapital
	if capital == 0 {
		capital = defaultStartCapital
	}
	rf := h.riskFreeRate
	if req.RiskFreeRate != nil {
		rf = *req.RiskFreeRate
	}

	matrix, err := h.marketData.Fetch(r.Context(), req.Symbols, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Price fetch failed")
		h.writeDomainError(w, err)
		return
	}

	simulator := NewSimulator(optimization.NewOptimizer(rf, h.log), h.log)
	runner := NewRunner(simulator, rf, h.log)
	results := runner.Compare(matrix, req.Variants, capital, SimOptions{
		MinLookback: req.MinLookback,
		Periodicity: periodicity,
	})

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":       results,
		"start_capital": capital,
		"window":        start.Format(domain.DateFormat) + ".." + end.Format(domain.DateFormat),
	})
}

// HandleListRuns handles GET /api/backtest/runs - newest-first run
// summaries.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		h.writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun handles GET /api/backtest/runs/{id} - one run with its
// full sequences.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to load run")
		h.writeError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "Run not found")
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// HandleDeleteRun handles DELETE /api/backtest/runs/{id}.
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteRun(id); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to delete run")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": id,
	})
}

// respondWithRun persists the run and writes the response. A storage
// failure is logged and drops the run id, the computed result still
// goes back to the caller.
func (h *Handler) respondWithRun(w http.ResponseWriter, run *Run, result *SimulationResult) {
	runID := run.ID
	if err := h.repo.SaveRun(run); err != nil {
		h.log.Error().Err(err).Msg("Failed to persist backtest run")
		runID = ""
	}

	h.writeJSON(w, http.StatusOK, BacktestResponse{
		RunID:      runID,
		Kind:       run.Kind,
		Params:     run.Params,
		Report:     run.Report,
		Rebalances: len(result.Holdings),
		Holdings:   result.Holdings,
		Trajectory: result.Trajectory,
	})
}

// parseWindow applies the shared window defaults: end today, start one
// year earlier.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endStr != "" {
		parsed, err := time.Parse(domain.DateFormat, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end date, expected YYYY-MM-DD")
		}
		end = parsed
	}

	start := end.AddDate(-1, 0, 0)
	if startStr != "" {
		parsed, err := time.Parse(domain.DateFormat, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start date, expected YYYY-MM-DD")
		}
		start = parsed
	}

	return start, end, nil
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
