package handlers

import (
	"errors"
	"net/http"

	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/models"
	"github.com/username/monedero/backend/src/services"
	"github.com/username/monedero/backend/src/utils"
)

// PortfolioHandler exposes the reconciled portfolio: positions, valuation
// history, performance and the operation ledger, plus the reconcile trigger.
type PortfolioHandler struct {
	portfolio services.PortfolioService
}

func NewPortfolioHandler(portfolio services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio}
}

func sendServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log := logger.FromContext(r.Context())
	switch {
	case errors.Is(err, models.ErrAuthenticationFailed):
		log.Warn("Broker session required", "error", err)
		utils.SendJSONError(w, "broker authentication required", http.StatusUnauthorized)
	case errors.Is(err, models.ErrBrokerRequestFailed), errors.Is(err, models.ErrRateFetchFailed):
		log.Error(msg, "error", err)
		utils.SendJSONError(w, "upstream provider unavailable", http.StatusBadGateway)
	default:
		log.Error(msg, "error", err)
		utils.SendJSONError(w, msg, http.StatusInternalServerError)
	}
}

func (h *PortfolioHandler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.portfolio.GetPositions(r.Context())
	if err != nil {
		sendServiceError(w, r, "failed to load positions", err)
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}
	utils.SendJSON(w, positions, http.StatusOK)
}

// HandleReconcile runs a full pass: position sync, operation replay and a
// valuation snapshot. The per-stage report is returned to the caller.
func (h *PortfolioHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.portfolio.Reconcile(r.Context())
	if err != nil {
		sendServiceError(w, r, "reconciliation failed", err)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

func (h *PortfolioHandler) HandleRefreshPositions(w http.ResponseWriter, r *http.Request) {
	report, err := h.portfolio.RefreshPositions(r.Context())
	if err != nil {
		sendServiceError(w, r, "position sync failed", err)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

func (h *PortfolioHandler) HandleSyncOperations(w http.ResponseWriter, r *http.Request) {
	report, err := h.portfolio.SyncOperations(r.Context())
	if err != nil {
		sendServiceError(w, r, "operation sync failed", err)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

func (h *PortfolioHandler) HandleGetLatestValuation(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.portfolio.GetLatestValuation(r.Context())
	if err != nil {
		sendServiceError(w, r, "failed to load valuation", err)
		return
	}
	if snapshot == nil {
		utils.SendJSONError(w, "no valuation available", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, snapshot, http.StatusOK)
}

func (h *PortfolioHandler) HandleGetPreviousValuation(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.portfolio.GetPreviousValuation(r.Context())
	if err != nil {
		sendServiceError(w, r, "failed to load valuation", err)
		return
	}
	if snapshot == nil {
		utils.SendJSONError(w, "no previous valuation available", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, snapshot, http.StatusOK)
}

func (h *PortfolioHandler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	report, err := h.portfolio.GetPerformance(r.Context())
	if err != nil {
		sendServiceError(w, r, "failed to compute performance", err)
		return
	}
	if report == nil {
		utils.SendJSONError(w, "no valuation available", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

func (h *PortfolioHandler) HandleListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.portfolio.ListOperations(r.Context())
	if err != nil {
		sendServiceError(w, r, "failed to load operations", err)
		return
	}
	if ops == nil {
		ops = []models.LedgerOperation{}
	}
	utils.SendJSON(w, ops, http.StatusOK)
}
