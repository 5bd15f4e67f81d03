package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/model"
	"github.com/username/monedero/backend/src/models"
	"github.com/username/monedero/backend/src/security/validation"
	"github.com/username/monedero/backend/src/services"
	"github.com/username/monedero/backend/src/utils"
)

// LedgerHandler serves the expense and income ledgers plus the gross income
// running total. New entries carry an ARS amount and are mirrored into USD at
// the current exchange rate.
type LedgerHandler struct {
	db    *sql.DB
	rates services.RateService
}

func NewLedgerHandler(db *sql.DB, rates services.RateService) *LedgerHandler {
	return &LedgerHandler{db: db, rates: rates}
}

type ledgerEntryRequest struct {
	Name      string  `json:"name"`
	AmountARS float64 `json:"amount_ars"`
	Date      string  `json:"date,omitempty"` // RFC3339, defaults to now
}

func (h *LedgerHandler) parseEntry(r *http.Request) (models.LedgerEntry, error) {
	var req ledgerEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return models.LedgerEntry{}, errors.New("invalid request body")
	}

	name := validation.SanitizeText(req.Name)
	if err := validation.ValidateStringNotEmpty(name, "name"); err != nil {
		return models.LedgerEntry{}, err
	}
	if err := validation.ValidateStringMaxLength(name, validation.MaxNameLength, "name"); err != nil {
		return models.LedgerEntry{}, err
	}
	if err := validation.ValidateAmount(req.AmountARS, "amount_ars"); err != nil {
		return models.LedgerEntry{}, err
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			return models.LedgerEntry{}, errors.New("date must be RFC3339")
		}
		date = parsed
	}

	rate, err := h.rates.GetRate(r.Context())
	if err != nil {
		return models.LedgerEntry{}, err
	}

	return models.LedgerEntry{
		Name:      name,
		AmountARS: req.AmountARS,
		AmountUSD: rate.ToUSD(req.AmountARS),
		Date:      date,
	}, nil
}

// monthParam reads ?month=YYYY-MM, defaulting to the current month.
func monthParam(r *http.Request) (string, error) {
	month := r.URL.Query().Get("month")
	if month == "" {
		return time.Now().Format("2006-01"), nil
	}
	return validation.ValidateMonth(month)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type ledgerInsert func(*sql.DB, models.LedgerEntry) (int64, error)
type ledgerList func(*sql.DB, string) ([]models.LedgerEntry, error)
type ledgerTotals func(*sql.DB, string) (models.LedgerSummary, error)
type ledgerDelete func(*sql.DB, int64) error

func (h *LedgerHandler) create(w http.ResponseWriter, r *http.Request, insert ledgerInsert) {
	log := logger.FromContext(r.Context())

	entry, err := h.parseEntry(r)
	if err != nil {
		if errors.Is(err, models.ErrRateFetchFailed) {
			log.Error("Rate lookup failed while creating ledger entry", "error", err)
			utils.SendJSONError(w, "exchange rate unavailable", http.StatusBadGateway)
			return
		}
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := insert(h.db, entry)
	if err != nil {
		log.Error("Ledger insert failed", "error", err)
		utils.SendJSONError(w, "failed to save entry", http.StatusInternalServerError)
		return
	}
	entry.ID = id
	utils.SendJSON(w, entry, http.StatusCreated)
}

func (h *LedgerHandler) list(w http.ResponseWriter, r *http.Request, list ledgerList) {
	month, err := monthParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := list(h.db, month)
	if err != nil {
		logger.FromContext(r.Context()).Error("Ledger query failed", "month", month, "error", err)
		utils.SendJSONError(w, "failed to load entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	utils.SendJSON(w, entries, http.StatusOK)
}

func (h *LedgerHandler) totals(w http.ResponseWriter, r *http.Request, totals ledgerTotals) {
	month, err := monthParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := totals(h.db, month)
	if err != nil {
		logger.FromContext(r.Context()).Error("Ledger totals query failed", "month", month, "error", err)
		utils.SendJSONError(w, "failed to compute totals", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

func (h *LedgerHandler) remove(w http.ResponseWriter, r *http.Request, remove ledgerDelete) {
	id, err := idParam(r)
	if err != nil {
		utils.SendJSONError(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	if err := remove(h.db, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "entry not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Ledger delete failed", "id", id, "error", err)
		utils.SendJSONError(w, "failed to delete entry", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) HandleCreateExpense(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.InsertExpense)
}

func (h *LedgerHandler) HandleListExpenses(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.ListExpenses)
}

func (h *LedgerHandler) HandleExpenseTotals(w http.ResponseWriter, r *http.Request) {
	h.totals(w, r, model.ExpenseMonthTotals)
}

func (h *LedgerHandler) HandleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, model.DeleteExpense)
}

func (h *LedgerHandler) HandleCreateIncome(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.InsertIncome)
}

func (h *LedgerHandler) HandleListIncomes(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.ListIncomes)
}

func (h *LedgerHandler) HandleIncomeTotals(w http.ResponseWriter, r *http.Request) {
	h.totals(w, r, model.IncomeMonthTotals)
}

func (h *LedgerHandler) HandleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, model.DeleteIncome)
}

// Gross income running total.

type grossIncomeRequest struct {
	AmountARS float64 `json:"amount_ars"`
}

func (h *LedgerHandler) HandleGetGrossIncome(w http.ResponseWriter, r *http.Request) {
	g, err := model.GetGrossIncome(h.db)
	if err != nil {
		logger.FromContext(r.Context()).Error("Gross income query failed", "error", err)
		utils.SendJSONError(w, "failed to load gross income", http.StatusInternalServerError)
		return
	}
	if g == nil {
		utils.SendJSON(w, models.GrossIncome{Date: time.Now()}, http.StatusOK)
		return
	}
	utils.SendJSON(w, g, http.StatusOK)
}

func (h *LedgerHandler) grossAmounts(r *http.Request) (float64, float64, error) {
	var req grossIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, 0, errors.New("invalid request body")
	}
	if err := validation.ValidateAmount(req.AmountARS, "amount_ars"); err != nil {
		return 0, 0, err
	}
	rate, err := h.rates.GetRate(r.Context())
	if err != nil {
		return 0, 0, err
	}
	return req.AmountARS, rate.ToUSD(req.AmountARS), nil
}

// HandleSetGrossIncome starts a new baseline row.
func (h *LedgerHandler) HandleSetGrossIncome(w http.ResponseWriter, r *http.Request) {
	ars, usd, err := h.grossAmounts(r)
	if err != nil {
		if errors.Is(err, models.ErrRateFetchFailed) {
			utils.SendJSONError(w, "exchange rate unavailable", http.StatusBadGateway)
			return
		}
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := model.SetGrossIncome(h.db, ars, usd, time.Now()); err != nil {
		logger.FromContext(r.Context()).Error("Gross income set failed", "error", err)
		utils.SendJSONError(w, "failed to set gross income", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddGrossIncome folds an amount into the latest baseline.
func (h *LedgerHandler) HandleAddGrossIncome(w http.ResponseWriter, r *http.Request) {
	ars, usd, err := h.grossAmounts(r)
	if err != nil {
		if errors.Is(err, models.ErrRateFetchFailed) {
			utils.SendJSONError(w, "exchange rate unavailable", http.StatusBadGateway)
			return
		}
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := model.AddToGrossIncome(h.db, ars, usd); err != nil {
		logger.FromContext(r.Context()).Error("Gross income update failed", "error", err)
		utils.SendJSONError(w, "failed to update gross income", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
