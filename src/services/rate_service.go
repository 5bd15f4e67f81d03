package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/models"
)

// rateProviderResponse is the rate provider's wire format.
type rateProviderResponse struct {
	Compra             float64 `json:"compra"`
	Venta              float64 `json:"venta"`
	FechaActualizacion string  `json:"fechaActualizacion"`
}

type rateServiceImpl struct {
	httpClient *http.Client
	url        string

	mu     sync.Mutex
	cached *models.ExchangeRate
}

// NewRateService creates a rate service against the given provider URL.
// The cache starts empty; the first GetRate call fetches.
func NewRateService(url string, timeout time.Duration) RateService {
	return &rateServiceImpl{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// GetRate returns the cached rate pair, fetching it on first use. The mutex
// is held across the fetch so concurrent first calls perform exactly one
// network round-trip. A failed fetch leaves the slot empty: no negative
// caching, the next call retries.
func (s *rateServiceImpl) GetRate(ctx context.Context) (models.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	rate, err := s.fetch(ctx)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	s.cached = &rate
	logger.L.Info("Exchange rate fetched", "buyRate", rate.BuyRate, "sellRate", rate.SellRate, "updatedAt", rate.UpdatedAt)
	return rate, nil
}

// Invalidate empties the cache slot; the next GetRate call fetches again.
func (s *rateServiceImpl) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *rateServiceImpl) fetch(ctx context.Context) (models.ExchangeRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return models.ExchangeRate{}, fmt.Errorf("%w: building request: %v", models.ErrRateFetchFailed, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.ExchangeRate{}, fmt.Errorf("%w: calling rate provider: %v", models.ErrRateFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ExchangeRate{}, fmt.Errorf("%w: rate provider returned status %d", models.ErrRateFetchFailed, resp.StatusCode)
	}

	var payload rateProviderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.ExchangeRate{}, fmt.Errorf("%w: decoding rate provider response: %v", models.ErrRateFetchFailed, err)
	}
	if payload.Compra <= 0 || payload.Venta <= 0 {
		return models.ExchangeRate{}, fmt.Errorf("%w: rate provider returned non-positive rates (compra=%v, venta=%v)", models.ErrRateFetchFailed, payload.Compra, payload.Venta)
	}

	updatedAt, err := time.Parse(time.RFC3339, payload.FechaActualizacion)
	if err != nil {
		logger.L.Warn("Rate provider timestamp did not parse, using local time", "value", payload.FechaActualizacion, "error", err)
		updatedAt = time.Now()
	}

	return models.ExchangeRate{
		BuyRate:   payload.Compra,
		SellRate:  payload.Venta,
		UpdatedAt: updatedAt,
	}, nil
}
