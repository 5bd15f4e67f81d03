package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/model"
	"github.com/username/monedero/backend/src/models"
)

const performanceCacheKey = "performance"

type portfolioServiceImpl struct {
	db     *sql.DB
	rates  RateService
	broker BrokerService

	// symbolLocks serializes every mutation of a given symbol's row so a
	// price sync and an operation replay cannot interleave on it.
	lockMu      sync.Mutex
	symbolLocks map[string]*sync.Mutex

	reportCache *cache.Cache
}

// NewPortfolioService creates the reconciliation engine.
func NewPortfolioService(db *sql.DB, rates RateService, broker BrokerService, reportCache *cache.Cache) PortfolioService {
	return &portfolioServiceImpl{
		db:          db,
		rates:       rates,
		broker:      broker,
		symbolLocks: make(map[string]*sync.Mutex),
		reportCache: reportCache,
	}
}

func (s *portfolioServiceImpl) lockSymbol(symbol string) func() {
	s.lockMu.Lock()
	mu, ok := s.symbolLocks[symbol]
	if !ok {
		mu = &sync.Mutex{}
		s.symbolLocks[symbol] = mu
	}
	s.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// RefreshPositions merges the broker's current holdings into the local
// portfolio: new symbols are inserted, existing symbols get their observed
// prices refreshed (cost basis is never touched here), and local symbols the
// broker no longer reports are flagged closed but retained. Per-symbol
// failures are contained in the report; the pass continues.
func (s *portfolioServiceImpl) RefreshPositions(ctx context.Context) (*RefreshReport, error) {
	log := logger.FromContext(ctx)

	// One fresh rate per reconciliation pass.
	s.rates.Invalidate()

	brokerPositions, err := s.broker.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	report := &RefreshReport{Failed: make(map[string]string)}
	now := time.Now()
	openSymbols := make([]string, 0, len(brokerPositions))

	for _, bp := range brokerPositions {
		// A symbol the broker reports is open regardless of whether its
		// row update succeeds below.
		openSymbols = append(openSymbols, bp.Symbol)

		inserted, err := s.syncOne(bp, now)
		if err != nil {
			log.Error("Position sync failed for symbol", "symbol", bp.Symbol, "error", err)
			report.Failed[bp.Symbol] = err.Error()
			continue
		}
		if inserted {
			report.Inserted++
		} else {
			report.Updated++
		}
	}

	closed, err := model.MarkClosedExcept(s.db, openSymbols, now)
	if err != nil {
		return report, err
	}
	report.Closed = int(closed)

	log.Info("Position sync completed",
		"inserted", report.Inserted, "updated", report.Updated,
		"closed", report.Closed, "failed", len(report.Failed))
	return report, nil
}

func (s *portfolioServiceImpl) syncOne(bp models.BrokerPosition, now time.Time) (inserted bool, err error) {
	unlock := s.lockSymbol(bp.Symbol)
	defer unlock()

	_, err = model.GetPositionBySymbol(s.db, bp.Symbol)
	switch {
	case errors.Is(err, model.ErrPositionNotFound):
		return true, model.InsertPosition(s.db, models.Position{
			Symbol:       bp.Symbol,
			Description:  bp.Description,
			Type:         bp.Type,
			Quantity:     bp.Quantity,
			AvgCostARS:   bp.AvgCost.ARS,
			AvgCostUSD:   bp.AvgCost.USD,
			LastPriceARS: bp.LastPrice.ARS,
			LastPriceUSD: bp.LastPrice.USD,
			OpenPosition: true,
			Date:         now,
		})
	case err != nil:
		return false, err
	default:
		return false, model.UpdatePositionPrices(s.db, bp.Symbol, bp.LastPrice.ARS, bp.LastPrice.USD, now)
	}
}

// ApplyOperation replays one trade event onto the portfolio. The operation
// is recorded in the immutable audit ledger first; a ledger write failure
// aborts the replay and is surfaced. Buy-class operations move the weighted
// average cost; sell-class operations only decrement quantity, clamped at
// zero, leaving cost basis and last price untouched. An oversell is applied
// clamped and surfaced as ErrOversellDetected.
func (s *portfolioServiceImpl) ApplyOperation(ctx context.Context, op models.Operation) error {
	log := logger.FromContext(ctx)

	isBuy, isSell := op.IsBuyClass(), op.IsSellClass()

	info, err := s.broker.GetInstrumentInfo(ctx, op.Symbol)
	if err != nil {
		return err
	}
	rate, err := s.rates.GetRate(ctx)
	if err != nil {
		return err
	}
	price := rate.Resolve(op.OperatedPrice, info.Currency)

	if err := model.InsertOperation(s.db, models.LedgerOperation{
		OperationID: op.OperationID,
		Date:        op.Date,
		Type:        op.Type,
		Symbol:      op.Symbol,
		Quantity:    op.Quantity,
		PriceARS:    price.ARS,
		PriceUSD:    price.USD,
	}); err != nil {
		log.Error("Operation ledger insert failed", "operationID", op.OperationID, "error", err)
		return err
	}

	if !isBuy && !isSell {
		log.Debug("Operation type does not affect positions", "operationID", op.OperationID, "type", op.Type)
		return nil
	}

	unlock := s.lockSymbol(op.Symbol)
	defer unlock()

	existing, err := model.GetPositionBySymbol(s.db, op.Symbol)
	if errors.Is(err, model.ErrPositionNotFound) {
		if isSell {
			log.Warn("Sell operation for a symbol with no local position", "symbol", op.Symbol, "operationID", op.OperationID)
			return fmt.Errorf("%w: sell of %s with no held quantity", models.ErrOversellDetected, op.Symbol)
		}
		return model.InsertPosition(s.db, models.Position{
			Symbol:       op.Symbol,
			Description:  info.Description,
			Type:         info.Type,
			Quantity:     op.Quantity,
			AvgCostARS:   price.ARS,
			AvgCostUSD:   price.USD,
			LastPriceARS: price.ARS, // cost equals current price at creation
			LastPriceUSD: price.USD,
			OpenPosition: true,
			Date:         op.Date,
		})
	}
	if err != nil {
		return err
	}

	if isBuy {
		newQty := existing.Quantity + op.Quantity
		if newQty > 0 {
			existing.AvgCostARS = (existing.Quantity*existing.AvgCostARS + op.Quantity*price.ARS) / newQty
			existing.AvgCostUSD = (existing.Quantity*existing.AvgCostUSD + op.Quantity*price.USD) / newQty
		}
		existing.Quantity = newQty
		existing.LastPriceARS = price.ARS
		existing.LastPriceUSD = price.USD
		existing.OpenPosition = true
		existing.Date = op.Date
		return model.UpdatePosition(s.db, *existing)
	}

	// Sell: quantity down, clamped at zero. Cost basis stays frozen and the
	// last observed price is retained, not overwritten by the sale price.
	newQty := existing.Quantity - op.Quantity
	oversold := newQty < 0
	if oversold {
		newQty = 0
	}
	existing.Quantity = newQty
	existing.Date = op.Date
	if err := model.UpdatePosition(s.db, *existing); err != nil {
		return err
	}
	if oversold {
		log.Warn("Oversell clamped to zero", "symbol", op.Symbol, "operationID", op.OperationID, "soldQuantity", op.Quantity)
		return fmt.Errorf("%w: sold %v of %s exceeding held quantity", models.ErrOversellDetected, op.Quantity, op.Symbol)
	}
	return nil
}

// SyncOperations pulls the broker's trade history and applies every
// operation not yet present in the audit ledger. Per-operation failures are
// contained in the report.
func (s *portfolioServiceImpl) SyncOperations(ctx context.Context) (*SyncReport, error) {
	log := logger.FromContext(ctx)

	ops, err := s.broker.GetOperations(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Failed: make(map[int64]string)}
	for _, op := range ops {
		exists, err := model.OperationExists(s.db, op.OperationID)
		if err != nil {
			report.Failed[op.OperationID] = err.Error()
			continue
		}
		if exists {
			report.Skipped++
			continue
		}

		err = s.ApplyOperation(ctx, op)
		switch {
		case errors.Is(err, models.ErrOversellDetected):
			// The clamped mutation was applied; the condition is surfaced.
			report.Applied++
			report.Oversells = append(report.Oversells, op.OperationID)
		case err != nil:
			log.Error("Operation replay failed", "operationID", op.OperationID, "error", err)
			report.Failed[op.OperationID] = err.Error()
		default:
			report.Applied++
		}
	}

	log.Info("Operation sync completed",
		"applied", report.Applied, "skipped", report.Skipped,
		"oversells", len(report.Oversells), "failed", len(report.Failed))
	return report, nil
}

// SnapshotValue sums quantity × last price over every position row, open and
// closed, and appends one valuation snapshot. An insert failure is fatal to
// the pass: no snapshot is better than a corrupt one.
func (s *portfolioServiceImpl) SnapshotValue(ctx context.Context) (*models.ValuationSnapshot, error) {
	positions, err := model.GetAllPositions(s.db)
	if err != nil {
		return nil, err
	}

	snapshot := models.ValuationSnapshot{Date: time.Now()}
	for _, p := range positions {
		value := p.MarketValue()
		snapshot.TotalARS += value.ARS
		snapshot.TotalUSD += value.USD
	}

	if err := model.InsertSnapshot(s.db, snapshot); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Valuation snapshot saved",
		"totalARS", snapshot.TotalARS, "totalUSD", snapshot.TotalUSD)
	return &snapshot, nil
}

// Reconcile runs a full refresh cycle: position sync, operation replay, then
// a valuation snapshot. A failed operation sync does not abort the snapshot
// unless the broker session itself is gone.
func (s *portfolioServiceImpl) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	log := logger.FromContext(ctx)

	refresh, err := s.RefreshPositions(ctx)
	if err != nil {
		return nil, err
	}

	syncReport, err := s.SyncOperations(ctx)
	if err != nil {
		if errors.Is(err, models.ErrAuthenticationFailed) {
			return nil, err
		}
		log.Warn("Operation sync failed, continuing to valuation snapshot", "error", err)
	}

	snapshot, err := s.SnapshotValue(ctx)
	if err != nil {
		return nil, err
	}

	s.reportCache.Delete(performanceCacheKey)

	return &ReconcileReport{Refresh: refresh, Sync: syncReport, Snapshot: snapshot}, nil
}

// InitializePortfolio seeds the portfolio from a broker pull when the local
// table is still empty, then records the first valuation snapshot.
func (s *portfolioServiceImpl) InitializePortfolio(ctx context.Context) error {
	count, err := model.CountPositions(s.db)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if _, err := s.RefreshPositions(ctx); err != nil {
		return err
	}
	_, err = s.SnapshotValue(ctx)
	return err
}

func (s *portfolioServiceImpl) GetPositions(ctx context.Context) ([]models.Position, error) {
	return model.GetAllPositions(s.db)
}

func (s *portfolioServiceImpl) ListOperations(ctx context.Context) ([]models.LedgerOperation, error) {
	return model.ListOperations(s.db)
}

// GetLatestValuation returns the most recent snapshot. When the time series
// is empty it synthesizes one from current positions and persists it, so
// after the first successful call at least one snapshot always exists (or
// nil when the portfolio itself is empty).
func (s *portfolioServiceImpl) GetLatestValuation(ctx context.Context) (*models.ValuationSnapshot, error) {
	latest, err := model.GetLatestSnapshot(s.db)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return latest, nil
	}

	positions, err := model.GetAllPositions(s.db)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}
	return s.SnapshotValue(ctx)
}

func (s *portfolioServiceImpl) GetPreviousValuation(ctx context.Context) (*models.ValuationSnapshot, error) {
	return model.GetPreviousSnapshot(s.db)
}

// GetPerformance compares the latest snapshot against the previous one. The
// result is cached until the next reconciliation pass.
func (s *portfolioServiceImpl) GetPerformance(ctx context.Context) (*models.PerformanceReport, error) {
	if cached, found := s.reportCache.Get(performanceCacheKey); found {
		report := cached.(models.PerformanceReport)
		return &report, nil
	}

	latest, err := s.GetLatestValuation(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	report := models.PerformanceReport{Latest: latest}
	previous, err := s.GetPreviousValuation(ctx)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		report.Previous = previous
		report.DeltaARS = latest.TotalARS - previous.TotalARS
		report.DeltaUSD = latest.TotalUSD - previous.TotalUSD
		if previous.TotalARS != 0 {
			report.PercentARS = report.DeltaARS / previous.TotalARS * 100
		}
		if previous.TotalUSD != 0 {
			report.PercentUSD = report.DeltaUSD / previous.TotalUSD * 100
		}
	}

	s.reportCache.Set(performanceCacheKey, report, cache.DefaultExpiration)
	return &report, nil
}
