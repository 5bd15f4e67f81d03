package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/models"
	"golang.org/x/oauth2"
)

// Instrument types quoted in cents of the local currency. Raw broker values
// for these are divided by 100 before any conversion.
var centsQuotedTypes = map[string]bool{
	"TitulosPublicos":         true,
	"ObligacionesNegociables": true,
	"Letras":                  true,
}

// --- Broker API wire formats ---

type brokerPortfolioResponse struct {
	Activos []struct {
		Cantidad     float64 `json:"cantidad"`
		Ppc          float64 `json:"ppc"`
		UltimoPrecio float64 `json:"ultimoPrecio"`
		Titulo       struct {
			Simbolo     string `json:"simbolo"`
			Descripcion string `json:"descripcion"`
			Tipo        string `json:"tipo"`
			Moneda      string `json:"moneda"`
		} `json:"titulo"`
	} `json:"activos"`
}

type brokerOperationsResponse struct {
	Operaciones []struct {
		Numero   int64   `json:"numero"`
		Fecha    string  `json:"fechaOrden"`
		Tipo     string  `json:"tipo"`
		Precio   float64 `json:"precio"`
		Cantidad float64 `json:"cantidad"`
		Titulo   struct {
			Simbolo string `json:"simbolo"`
		} `json:"titulo"`
	} `json:"operaciones"`
}

type brokerInstrumentResponse struct {
	Simbolo     string `json:"simbolo"`
	Descripcion string `json:"descripcion"`
	Tipo        string `json:"tipo"`
	Moneda      string `json:"moneda"`
}

// --- Service implementation ---

type brokerServiceImpl struct {
	httpClient  *http.Client
	baseURL     string
	oauthConfig *oauth2.Config
	tokenStore  *TokenStore
	rates       RateService

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
	lastSaved   string // access token already persisted

	instrumentCache *cache.Cache
}

// NewBrokerService creates the brokerage client. If a sealed token pair is
// already stored, the session resumes without re-authentication.
func NewBrokerService(baseURL string, timeout time.Duration, tokenStore *TokenStore, rates RateService, instrumentTTL time.Duration) BrokerService {
	return &brokerServiceImpl{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		oauthConfig: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokenStore:      tokenStore,
		rates:           rates,
		instrumentCache: cache.New(instrumentTTL, 2*instrumentTTL),
	}
}

// Authenticate performs the password grant and persists the sealed token
// pair. The credentials themselves are discarded.
func (s *brokerServiceImpl) Authenticate(ctx context.Context, username, password string) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.oauthConfig.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return fmt.Errorf("%w: password grant: %v", models.ErrAuthenticationFailed, err)
	}
	if err := s.tokenStore.Save(tok); err != nil {
		return err
	}

	s.mu.Lock()
	s.tokenSource = s.oauthConfig.TokenSource(context.Background(), tok)
	s.lastSaved = tok.AccessToken
	s.mu.Unlock()

	logger.L.Info("Broker authentication succeeded", "expiry", tok.Expiry)
	return nil
}

// Logout deletes the stored token pair and drops the in-memory session.
func (s *brokerServiceImpl) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.tokenSource = nil
	s.lastSaved = ""
	s.mu.Unlock()
	return s.tokenStore.Delete()
}

// token returns a valid access token, transparently refreshing through the
// refresh-token grant when the cached one has expired. Refreshed pairs are
// re-sealed and persisted before use.
func (s *brokerServiceImpl) token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokenSource == nil {
		stored, err := s.tokenStore.Load()
		if err != nil {
			if errors.Is(err, ErrNoToken) {
				return nil, fmt.Errorf("%w: %v", models.ErrAuthenticationFailed, err)
			}
			return nil, err
		}
		s.tokenSource = s.oauthConfig.TokenSource(context.Background(), stored)
	}

	tok, err := s.tokenSource.Token()
	if err != nil {
		// A failed refresh is terminal until the user re-authenticates.
		s.tokenSource = nil
		return nil, fmt.Errorf("%w: token refresh: %v", models.ErrAuthenticationFailed, err)
	}
	if tok.AccessToken != s.lastSaved {
		if err := s.tokenStore.Save(tok); err != nil {
			return nil, err
		}
		s.lastSaved = tok.AccessToken
		logger.L.Info("Broker token refreshed and re-sealed", "expiry", tok.Expiry)
	}
	return tok, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
func (s *brokerServiceImpl) getJSON(ctx context.Context, path string, out any) error {
	tok, err := s.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: building request for %s: %v", models.ErrBrokerRequestFailed, path, err)
	}
	tok.SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: calling %s: %v", models.ErrBrokerRequestFailed, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: broker rejected token on %s", models.ErrAuthenticationFailed, path)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s returned status %d", models.ErrBrokerRequestFailed, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", models.ErrBrokerRequestFailed, path, err)
	}
	return nil
}

// GetPositions returns current holdings with cost and price mirrored into
// both currencies through the cached exchange rate.
func (s *brokerServiceImpl) GetPositions(ctx context.Context) ([]models.BrokerPosition, error) {
	var payload brokerPortfolioResponse
	if err := s.getJSON(ctx, "/api/v2/portafolio/argentina", &payload); err != nil {
		return nil, err
	}

	rate, err := s.rates.GetRate(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]models.BrokerPosition, 0, len(payload.Activos))
	for _, activo := range payload.Activos {
		currency := models.ParseCurrency(activo.Titulo.Moneda)
		ppc := activo.Ppc
		last := activo.UltimoPrecio

		// Public bonds, notes and letras trade in cents of a peso.
		if currency == models.CurrencyLocal && centsQuotedTypes[activo.Titulo.Tipo] {
			ppc /= 100
			last /= 100
		}

		positions = append(positions, models.BrokerPosition{
			Symbol:      activo.Titulo.Simbolo,
			Description: activo.Titulo.Descripcion,
			Type:        activo.Titulo.Tipo,
			Currency:    currency,
			Quantity:    activo.Cantidad,
			AvgCost:     rate.Resolve(ppc, currency),
			LastPrice:   rate.Resolve(last, currency),
		})
	}
	return positions, nil
}

// brokerTimeLayouts covers the timestamp shapes the broker emits.
var brokerTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseBrokerTime(value string) time.Time {
	for _, layout := range brokerTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	logger.L.Warn("Broker timestamp did not parse, using local time", "value", value)
	return time.Now()
}

// GetOperations returns the broker's trade history.
func (s *brokerServiceImpl) GetOperations(ctx context.Context) ([]models.Operation, error) {
	var payload brokerOperationsResponse
	if err := s.getJSON(ctx, "/api/v2/operaciones/argentina", &payload); err != nil {
		return nil, err
	}

	ops := make([]models.Operation, 0, len(payload.Operaciones))
	for _, o := range payload.Operaciones {
		ops = append(ops, models.Operation{
			OperationID:   o.Numero,
			Date:          parseBrokerTime(o.Fecha),
			Type:          o.Tipo,
			Symbol:        o.Titulo.Simbolo,
			Quantity:      o.Cantidad,
			OperatedPrice: o.Precio,
		})
	}
	return ops, nil
}

// GetInstrumentInfo returns instrument metadata, cached per symbol.
func (s *brokerServiceImpl) GetInstrumentInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error) {
	if cached, found := s.instrumentCache.Get(symbol); found {
		info := cached.(models.InstrumentInfo)
		return &info, nil
	}

	var payload brokerInstrumentResponse
	path := "/api/v2/bCBA/Titulos/" + url.PathEscape(symbol)
	if err := s.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}

	info := models.InstrumentInfo{
		Symbol:      payload.Simbolo,
		Description: payload.Descripcion,
		Type:        payload.Tipo,
		Currency:    models.ParseCurrency(payload.Moneda),
	}
	s.instrumentCache.Set(symbol, info, cache.DefaultExpiration)
	return &info, nil
}
