package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/monedero/backend/src/models"
	"github.com/username/monedero/backend/src/security"
	"golang.org/x/oauth2"
)

// fakeBrokerAPI is an httptest stand-in for the brokerage: a form-encoded
// token endpoint plus the authenticated JSON API.
type fakeBrokerAPI struct {
	t *testing.T

	accessToken    string
	tokenGrants    atomic.Int32
	refreshGrants  atomic.Int32
	instrumentHits atomic.Int32

	portfolioBody  string
	operationsBody string
	instrumentBody string
}

func (f *fakeBrokerAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "password":
			if r.Form.Get("username") != "user" || r.Form.Get("password") != "pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			f.tokenGrants.Add(1)
		case "refresh_token":
			if r.Form.Get("refresh_token") != "refresh-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			f.refreshGrants.Add(1)
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer","refresh_token":"refresh-1","expires_in":3600}`, f.accessToken)
	})

	authed := func(body string, hits *atomic.Int32) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+f.accessToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if hits != nil {
				hits.Add(1)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}
	}

	mux.HandleFunc("/api/v2/portafolio/argentina", func(w http.ResponseWriter, r *http.Request) {
		authed(f.portfolioBody, nil)(w, r)
	})
	mux.HandleFunc("/api/v2/operaciones/argentina", func(w http.ResponseWriter, r *http.Request) {
		authed(f.operationsBody, nil)(w, r)
	})
	mux.HandleFunc("/api/v2/bCBA/Titulos/", func(w http.ResponseWriter, r *http.Request) {
		authed(f.instrumentBody, &f.instrumentHits)(w, r)
	})
	return mux
}

func newBrokerFixture(t *testing.T) (*fakeBrokerAPI, BrokerService, *TokenStore) {
	t.Helper()

	api := &fakeBrokerAPI{t: t, accessToken: "token-1"}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	vault, err := security.NewTokenVault(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	store := NewTokenStore(newTestDB(t), vault)
	rates := &fakeRateService{rate: testRate}

	svc := NewBrokerService(srv.URL, time.Second, store, rates, time.Minute)
	return api, svc, store
}

func TestAuthenticatePersistsSealedToken(t *testing.T) {
	api, svc, store := newBrokerFixture(t)

	require.NoError(t, svc.Authenticate(context.Background(), "user", "pass"))
	assert.Equal(t, int32(1), api.tokenGrants.Load())

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
}

func TestAuthenticateBadCredentials(t *testing.T) {
	_, svc, store := newBrokerFixture(t)

	err := svc.Authenticate(context.Background(), "user", "wrong")
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestGetPositionsWithoutSession(t *testing.T) {
	_, svc, _ := newBrokerFixture(t)

	_, err := svc.GetPositions(context.Background())
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestGetPositionsResolvesCurrenciesAndCents(t *testing.T) {
	api, svc, _ := newBrokerFixture(t)
	api.portfolioBody = `{"activos": [
		{"cantidad": 10, "ppc": 1000, "ultimoPrecio": 1200,
		 "titulo": {"simbolo": "GGAL", "descripcion": "Galicia", "tipo": "ACCIONES", "moneda": "peso_Argentino"}},
		{"cantidad": 100, "ppc": 65000, "ultimoPrecio": 70000,
		 "titulo": {"simbolo": "AL30", "descripcion": "Bonar 2030", "tipo": "TitulosPublicos", "moneda": "peso_Argentino"}},
		{"cantidad": 5, "ppc": 50, "ultimoPrecio": 55,
		 "titulo": {"simbolo": "AL30D", "descripcion": "Bonar 2030 USD", "tipo": "TitulosPublicos", "moneda": "dolares_EstadosUnidos"}}
	]}`

	require.NoError(t, svc.Authenticate(context.Background(), "user", "pass"))
	positions, err := svc.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 3)

	// Plain peso share: ARS as-is, USD at the buy rate.
	ggal := positions[0]
	assert.Equal(t, models.CurrencyLocal, ggal.Currency)
	assert.Equal(t, 1000.0, ggal.AvgCost.ARS)
	assert.Equal(t, 1.0, ggal.AvgCost.USD)
	assert.Equal(t, 1200.0, ggal.LastPrice.ARS)

	// Peso bond quoted in cents: raw values scale down by 100 first.
	al30 := positions[1]
	assert.Equal(t, 650.0, al30.AvgCost.ARS)
	assert.Equal(t, 0.65, al30.AvgCost.USD)
	assert.Equal(t, 700.0, al30.LastPrice.ARS)

	// Dollar bond: USD as-is, ARS at the sell rate; no cents scaling.
	al30d := positions[2]
	assert.Equal(t, models.CurrencyReference, al30d.Currency)
	assert.Equal(t, 50.0, al30d.AvgCost.USD)
	assert.Equal(t, 60000.0, al30d.AvgCost.ARS)
	assert.Equal(t, 55.0, al30d.LastPrice.USD)
}

func TestGetOperationsParsesBrokerTimestamps(t *testing.T) {
	api, svc, _ := newBrokerFixture(t)
	api.operationsBody = `{"operaciones": [
		{"numero": 7, "fechaOrden": "2025-06-01T10:30:00", "tipo": "Compra", "precio": 1200, "cantidad": 10,
		 "titulo": {"simbolo": "GGAL"}},
		{"numero": 8, "fechaOrden": "2025-06-02", "tipo": "Venta", "precio": 1300, "cantidad": 4,
		 "titulo": {"simbolo": "GGAL"}}
	]}`

	require.NoError(t, svc.Authenticate(context.Background(), "user", "pass"))
	ops, err := svc.GetOperations(context.Background())
	require.NoError(t, err)
	require.Len(t, ops, 2)

	assert.Equal(t, int64(7), ops[0].OperationID)
	assert.Equal(t, "GGAL", ops[0].Symbol)
	assert.True(t, ops[0].IsBuyClass())
	assert.Equal(t, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC), ops[0].Date)

	assert.True(t, ops[1].IsSellClass())
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), ops[1].Date)
}

func TestGetInstrumentInfoIsCached(t *testing.T) {
	api, svc, _ := newBrokerFixture(t)
	api.instrumentBody = `{"simbolo": "GGAL", "descripcion": "Galicia", "tipo": "ACCIONES", "moneda": "peso_Argentino"}`

	require.NoError(t, svc.Authenticate(context.Background(), "user", "pass"))

	info, err := svc.GetInstrumentInfo(context.Background(), "GGAL")
	require.NoError(t, err)
	assert.Equal(t, models.CurrencyLocal, info.Currency)

	_, err = svc.GetInstrumentInfo(context.Background(), "GGAL")
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.instrumentHits.Load())
}

func TestSessionResumesFromStoredToken(t *testing.T) {
	api, svc, store := newBrokerFixture(t)
	api.portfolioBody = `{"activos": []}`

	require.NoError(t, svc.Authenticate(context.Background(), "user", "pass"))

	// A fresh instance (as after a restart) resumes from the sealed store.
	rates := &fakeRateService{rate: testRate}
	resumed := NewBrokerService(brokerBaseURL(svc), time.Second, store, rates, time.Minute)

	positions, err := resumed.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, int32(1), api.tokenGrants.Load(), "no second password grant")
}

func TestExpiredTokenIsRefreshedAndResealed(t *testing.T) {
	api, svc, store := newBrokerFixture(t)
	api.portfolioBody = `{"activos": []}`
	api.accessToken = "token-2"

	// Seed the store with an expired pair; the next call must use the
	// refresh grant instead of failing.
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "token-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	_, err := svc.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.refreshGrants.Load())

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok.AccessToken, "refreshed pair is re-sealed at rest")
}

func TestLogoutDropsStoredToken(t *testing.T) {
	_, svc, store := newBrokerFixture(t)

	require.NoError(t, svc.Authenticate(context.Background(), "user", "pass"))
	require.NoError(t, svc.Logout(context.Background()))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = svc.GetPositions(context.Background())
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestRejectedTokenSurfacesAuthError(t *testing.T) {
	api, svc, _ := newBrokerFixture(t)
	api.portfolioBody = `{"activos": []}`

	require.NoError(t, svc.Authenticate(context.Background(), "user", "pass"))

	// The broker starts rejecting the issued token.
	api.accessToken = "rotated-elsewhere"
	_, err := svc.GetPositions(context.Background())
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

// brokerBaseURL digs the base URL back out of a service built in tests.
func brokerBaseURL(svc BrokerService) string {
	return svc.(*brokerServiceImpl).baseURL
}
