package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func rateProvider(t *testing.T, hits *atomic.Int32, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetRateFetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := rateProvider(t, &hits, `{"compra": 1190.5, "venta": 1210.0, "fechaActualizacion": "2025-06-01T12:00:00Z"}`, http.StatusOK)

	svc := NewRateService(srv.URL, time.Second)

	rate, err := svc.GetRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1190.5, rate.BuyRate)
	assert.Equal(t, 1210.0, rate.SellRate)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), rate.UpdatedAt.UTC())

	// Second call serves from the cache slot.
	_, err = svc.GetRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetRateInvalidate(t *testing.T) {
	var hits atomic.Int32
	srv := rateProvider(t, &hits, `{"compra": 1190.5, "venta": 1210.0, "fechaActualizacion": "2025-06-01T12:00:00Z"}`, http.StatusOK)

	svc := NewRateService(srv.URL, time.Second)

	_, err := svc.GetRate(context.Background())
	require.NoError(t, err)

	svc.Invalidate()
	_, err = svc.GetRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetRateProviderFailureIsNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := rateProvider(t, &hits, `oops`, http.StatusInternalServerError)

	svc := NewRateService(srv.URL, time.Second)

	_, err := svc.GetRate(context.Background())
	assert.ErrorIs(t, err, models.ErrRateFetchFailed)

	// No negative caching: the next call hits the provider again.
	_, err = svc.GetRate(context.Background())
	assert.ErrorIs(t, err, models.ErrRateFetchFailed)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetRateRejectsNonPositiveRates(t *testing.T) {
	var hits atomic.Int32
	srv := rateProvider(t, &hits, `{"compra": 0, "venta": 1210.0, "fechaActualizacion": "2025-06-01T12:00:00Z"}`, http.StatusOK)

	svc := NewRateService(srv.URL, time.Second)

	_, err := svc.GetRate(context.Background())
	assert.ErrorIs(t, err, models.ErrRateFetchFailed)
}

func TestGetRateBadTimestampFallsBackToNow(t *testing.T) {
	var hits atomic.Int32
	srv := rateProvider(t, &hits, `{"compra": 1190.5, "venta": 1210.0, "fechaActualizacion": "not-a-date"}`, http.StatusOK)

	svc := NewRateService(srv.URL, time.Second)

	before := time.Now()
	rate, err := svc.GetRate(context.Background())
	require.NoError(t, err)
	assert.False(t, rate.UpdatedAt.Before(before))
}

func TestGetRateConcurrentFirstCallsShareOneFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte(`{"compra": 1190.5, "venta": 1210.0, "fechaActualizacion": "2025-06-01T12:00:00Z"}`))
	}))
	t.Cleanup(srv.Close)

	svc := NewRateService(srv.URL, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate, err := svc.GetRate(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 1190.5, rate.BuyRate)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}
