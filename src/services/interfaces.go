package services

import (
	"context"
	"time"

	"github.com/username/monedero/backend/src/models"
)

const (
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

// RateService fetches and caches the MEP exchange rate pair. The cache is a
// single slot that lives until Invalidate is called; concurrent first calls
// share one fetch.
type RateService interface {
	GetRate(ctx context.Context) (models.ExchangeRate, error)
	Invalidate()
}

// BrokerService is the authenticated client for the remote brokerage.
type BrokerService interface {
	// Authenticate exchanges credentials for a token pair. Credentials are
	// never persisted; only the sealed tokens are.
	Authenticate(ctx context.Context, username, password string) error
	// Logout discards the stored token pair.
	Logout(ctx context.Context) error
	// GetPositions returns the broker's current holdings with cost and price
	// resolved into both currencies.
	GetPositions(ctx context.Context) ([]models.BrokerPosition, error)
	// GetOperations returns the broker's trade history.
	GetOperations(ctx context.Context) ([]models.Operation, error)
	// GetInstrumentInfo returns instrument metadata (cached).
	GetInstrumentInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error)
}

// RefreshReport aggregates the outcome of one position-sync pass. Per-symbol
// failures are contained here instead of aborting the pass.
type RefreshReport struct {
	Inserted int               `json:"inserted"`
	Updated  int               `json:"updated"`
	Closed   int               `json:"closed"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// SyncReport aggregates the outcome of one operation-replay pass.
type SyncReport struct {
	Applied   int              `json:"applied"`
	Skipped   int              `json:"skipped"`
	Oversells []int64          `json:"oversells,omitempty"`
	Failed    map[int64]string `json:"failed,omitempty"`
}

// ReconcileReport is the combined outcome of a full refresh cycle.
type ReconcileReport struct {
	Refresh  *RefreshReport            `json:"refresh"`
	Sync     *SyncReport               `json:"sync,omitempty"`
	Snapshot *models.ValuationSnapshot `json:"snapshot"`
}

// PortfolioService is the reconciliation and valuation engine: it merges
// broker positions into the local portfolio, replays trade operations onto
// the cost basis, and appends valuation snapshots.
type PortfolioService interface {
	RefreshPositions(ctx context.Context) (*RefreshReport, error)
	ApplyOperation(ctx context.Context, op models.Operation) error
	SyncOperations(ctx context.Context) (*SyncReport, error)
	SnapshotValue(ctx context.Context) (*models.ValuationSnapshot, error)
	Reconcile(ctx context.Context) (*ReconcileReport, error)
	InitializePortfolio(ctx context.Context) error

	GetPositions(ctx context.Context) ([]models.Position, error)
	GetLatestValuation(ctx context.Context) (*models.ValuationSnapshot, error)
	GetPreviousValuation(ctx context.Context) (*models.ValuationSnapshot, error)
	GetPerformance(ctx context.Context) (*models.PerformanceReport, error)
	ListOperations(ctx context.Context) ([]models.LedgerOperation, error)
}
