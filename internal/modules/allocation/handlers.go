package allocation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// defaultCapital sizes an allocation when the request leaves it out.
const defaultCapital = 10000.0

// PriceSource supplies current prices when a request does not carry its
// own. Satisfied by *marketdata.Service.
type PriceSource interface {
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// AllocateRequest is the payload for POST /api/allocation. Prices are
// optional; omitted ones are fetched from the market-data service.
type AllocateRequest struct {
	Weights map[string]float64 `json:"weights"`
	Capital float64            `json:"capital,omitempty"`
	Prices  map[string]float64 `json:"prices,omitempty"`
}

// Handler handles HTTP requests for the allocation module.
type Handler struct {
	prices PriceSource
	log    zerolog.Logger
}

// NewHandler creates a new allocation handler.
func NewHandler(prices PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		prices: prices,
		log:    log.With().Str("component", "allocation_handler").Logger(),
	}
}

// HandleAllocate handles POST /api/allocation.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Weights) == 0 {
		h.writeError(w, http.StatusBadRequest, "weights is required")
		return
	}

	capital := req.Capital
	if capital == 0 {
		capital = defaultCapital
	}
	if capital < 0 {
		h.writeError(w, http.StatusBadRequest, "capital must be positive")
		return
	}

	prices := req.Prices
	if len(prices) == 0 {
		symbols := weightedSymbols(req.Weights)
		h.log.Info().Strs("symbols", symbols).Float64("capital", capital).Msg("Fetching current prices for allocation")

		fetched, err := h.prices.LatestPrices(r.Context(), symbols)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to fetch current prices")
			h.writeDomainError(w, err)
			return
		}
		prices = fetched
	}

	alloc, err := Greedy(req.Weights, prices, capital)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, alloc)
}

func weightedSymbols(weights map[string]float64) []string {
	symbols := make([]string, 0, len(weights))
	for sym, w := range weights {
		if w != 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// writeDomainError maps domain failures to HTTP statuses; upstream data
// failures are 502, everything else 400.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var unavailable *domain.DataUnavailableError
	if errors.As(err, &unavailable) {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
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
