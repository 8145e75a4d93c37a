package rebalancing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// PriceSource supplies current prices when a request does not carry its
// own. Satisfied by *marketdata.Service.
type PriceSource interface {
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// GuideRequest is the payload for POST /api/rebalancing/guide. Prices
// are optional; omitted ones are fetched from the market-data service.
type GuideRequest struct {
	Holdings      map[string]float64 `json:"holdings"`
	TargetWeights map[string]float64 `json:"target_weights"`
	Prices        map[string]float64 `json:"prices,omitempty"`
	CostRate      *float64           `json:"cost_rate,omitempty"`
}

// Handler handles HTTP requests for the rebalancing module.
type Handler struct {
	prices PriceSource
	log    zerolog.Logger
}

// NewHandler creates a new rebalancing handler.
func NewHandler(prices PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		prices: prices,
		log:    log.With().Str("component", "rebalancing_handler").Logger(),
	}
}

// HandleGuide handles POST /api/rebalancing/guide.
func (h *Handler) HandleGuide(w http.ResponseWriter, r *http.Request) {
	var req GuideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.TargetWeights) == 0 {
		h.writeError(w, http.StatusBadRequest, "target_weights is required")
		return
	}

	costRate := defaultCostRate
	if req.CostRate != nil {
		costRate = *req.CostRate
	}

	prices := req.Prices
	if len(prices) == 0 {
		symbols := unionSymbols(req.Holdings, req.TargetWeights)
		h.log.Info().Strs("symbols", symbols).Msg("Fetching current prices for rebalancing guide")

		fetched, err := h.prices.LatestPrices(r.Context(), symbols)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to fetch current prices")
			h.writeDomainError(w, err)
			return
		}
		prices = fetched
	}

	guide, err := BuildGuide(req.Holdings, req.TargetWeights, prices, costRate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, guide)
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
