package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/models"
	"github.com/username/monedero/backend/src/security/validation"
	"github.com/username/monedero/backend/src/services"
	"github.com/username/monedero/backend/src/utils"
)

// BrokerHandler manages the broker session. Credentials pass through to the
// broker's token endpoint and are never stored; only the resulting token is
// kept, sealed at rest.
type BrokerHandler struct {
	broker    services.BrokerService
	portfolio services.PortfolioService
}

func NewBrokerHandler(broker services.BrokerService, portfolio services.PortfolioService) *BrokerHandler {
	return &BrokerHandler{broker: broker, portfolio: portfolio}
}

type brokerLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *BrokerHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req brokerLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.Username, "username"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.Password, "password"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.broker.Authenticate(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, models.ErrAuthenticationFailed) {
			log.Warn("Broker login rejected", "username", req.Username)
			utils.SendJSONError(w, "invalid broker credentials", http.StatusUnauthorized)
			return
		}
		log.Error("Broker login failed", "error", err)
		utils.SendJSONError(w, "broker unavailable", http.StatusBadGateway)
		return
	}
	log.Info("Broker session established", "username", req.Username)

	// First login on an empty database seeds the portfolio.
	if err := h.portfolio.InitializePortfolio(r.Context()); err != nil {
		log.Error("Portfolio initialization after login failed", "error", err)
		utils.SendJSON(w, map[string]string{
			"status":  "authenticated",
			"warning": "portfolio initialization failed, run a reconcile",
		}, http.StatusOK)
		return
	}

	utils.SendJSON(w, map[string]string{"status": "authenticated"}, http.StatusOK)
}

func (h *BrokerHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.broker.Logout(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("Broker logout failed", "error", err)
		utils.SendJSONError(w, "failed to clear broker session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
