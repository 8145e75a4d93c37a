package marketdata

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// Handler handles HTTP requests for the market data module.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new market data handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("component", "marketdata_handler").Logger(),
	}
}

// HandleGetPrices handles GET /api/marketdata/prices - returns aligned
// daily price series for the requested symbols.
//
// Query parameters:
//   - symbols: comma-separated list (required)
//   - start:   YYYY-MM-DD (default: one year before end)
//   - end:     YYYY-MM-DD (default: today)
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbolsParam := r.URL.Query().Get("symbols")
	if symbolsParam == "" {
		h.writeError(w, http.StatusBadRequest, "symbols parameter is required")
		return
	}

	symbols := strings.Split(symbolsParam, ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	end := time.Now().UTC()
	if endParam := r.URL.Query().Get("end"); endParam != "" {
		parsed, err := time.Parse(domain.DateFormat, endParam)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid end date, expected YYYY-MM-DD")
			return
		}
		end = parsed
	}

	start := end.AddDate(-1, 0, 0)
	if startParam := r.URL.Query().Get("start"); startParam != "" {
		parsed, err := time.Parse(domain.DateFormat, startParam)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid start date, expected YYYY-MM-DD")
			return
		}
		start = parsed
	}

	matrix, err := h.service.Fetch(r.Context(), symbols, start, end)
	if err != nil {
		var unavailable *domain.DataUnavailableError
		if errors.As(err, &unavailable) {
			h.log.Warn().Err(err).Msg("Market data unavailable")
			h.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to fetch prices")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dates := make([]string, matrix.NumDates())
	for i, d := range matrix.Dates {
		dates[i] = d.Format(domain.DateFormat)
	}

	h.writeJSON(w, http.StatusOK, PricesResponse{
		Dates:   dates,
		Symbols: matrix.Symbols,
		Series:  matrix.Prices,
	})
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
