package handlers

import (
	"net/http"

	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/services"
	"github.com/username/monedero/backend/src/utils"
)

// RateHandler serves the cached ARS/USD exchange rate.
type RateHandler struct {
	rates services.RateService
}

func NewRateHandler(rates services.RateService) *RateHandler {
	return &RateHandler{rates: rates}
}

// HandleGetRate returns the current rate. ?refresh=1 drops the cached value
// first, forcing a provider fetch.
func (h *RateHandler) HandleGetRate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		h.rates.Invalidate()
	}

	rate, err := h.rates.GetRate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Rate fetch failed", "error", err)
		utils.SendJSONError(w, "exchange rate unavailable", http.StatusBadGateway)
		return
	}
	utils.SendJSON(w, rate, http.StatusOK)
}
