package models

import (
	"strings"
	"time"
)

// Currency is the closed set of currencies an instrument can trade in.
// It is resolved once from the broker's currency tag and carried through
// every conversion instead of re-matching strings.
type Currency string

const (
	// CurrencyLocal is the Argentine peso (ARS).
	CurrencyLocal Currency = "ARS"
	// CurrencyReference is the US dollar (USD).
	CurrencyReference Currency = "USD"
)

// ParseCurrency maps the broker's currency tag (e.g. "peso_Argentino",
// "dolares_EstadosUnidos") onto the closed Currency set. Anything that is not
// a peso variant is treated as the reference currency, matching the broker's
// two-currency universe.
func ParseCurrency(tag string) Currency {
	if strings.Contains(strings.ToLower(tag), "peso") {
		return CurrencyLocal
	}
	return CurrencyReference
}

// ExchangeRate is the cached buy/sell rate pair from the rate provider,
// expressed as ARS per USD.
type ExchangeRate struct {
	BuyRate   float64   `json:"buyRate"`
	SellRate  float64   `json:"sellRate"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DualAmount carries a value denominated in both currencies.
type DualAmount struct {
	ARS float64 `json:"ars"`
	USD float64 `json:"usd"`
}

// ToUSD converts a local-currency amount using the buy rate.
func (r ExchangeRate) ToUSD(ars float64) float64 {
	if r.BuyRate == 0 {
		return 0
	}
	return ars / r.BuyRate
}

// ToARS converts a reference-currency amount using the sell rate.
func (r ExchangeRate) ToARS(usd float64) float64 {
	return usd * r.SellRate
}

// Resolve expands a price in the instrument's native currency into both
// currencies, applying the conversion direction the rate pair defines.
func (r ExchangeRate) Resolve(price float64, currency Currency) DualAmount {
	if currency == CurrencyLocal {
		return DualAmount{ARS: price, USD: r.ToUSD(price)}
	}
	return DualAmount{ARS: r.ToARS(price), USD: price}
}
