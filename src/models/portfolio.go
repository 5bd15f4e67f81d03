package models

import "time"

// Position is one row of the local portfolio: a held instrument's quantity
// and weighted-average cost basis, mirrored in both currencies.
type Position struct {
	ID           int64     `json:"id,omitempty"`
	Symbol       string    `json:"symbol"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	Quantity     float64   `json:"quantity"`
	AvgCostARS   float64   `json:"avg_cost_ars"`
	AvgCostUSD   float64   `json:"avg_cost_usd"`
	LastPriceARS float64   `json:"last_price_ars"`
	LastPriceUSD float64   `json:"last_price_usd"`
	OpenPosition bool      `json:"open_position"`
	Date         time.Time `json:"date"`
}

// MarketValue returns quantity × last price in both currencies.
func (p Position) MarketValue() DualAmount {
	return DualAmount{
		ARS: p.Quantity * p.LastPriceARS,
		USD: p.Quantity * p.LastPriceUSD,
	}
}

// ValuationSnapshot is one append-only row of the portfolio value time series.
type ValuationSnapshot struct {
	ID       int64     `json:"id,omitempty"`
	TotalARS float64   `json:"total_ars"`
	TotalUSD float64   `json:"total_usd"`
	Date     time.Time `json:"date"`
}

// PerformanceReport compares the latest valuation snapshot against the
// previous one.
type PerformanceReport struct {
	Latest     *ValuationSnapshot `json:"latest"`
	Previous   *ValuationSnapshot `json:"previous,omitempty"`
	DeltaARS   float64            `json:"delta_ars"`
	DeltaUSD   float64            `json:"delta_usd"`
	PercentARS float64            `json:"percent_ars"`
	PercentUSD float64            `json:"percent_usd"`
}

// BrokerPosition is the broker's view of a held instrument after currency
// resolution: cost and price are expressed in both currencies.
type BrokerPosition struct {
	Symbol      string     `json:"symbol"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Currency    Currency   `json:"currency"`
	Quantity    float64    `json:"quantity"`
	AvgCost     DualAmount `json:"avg_cost"`
	LastPrice   DualAmount `json:"last_price"`
}

// InstrumentInfo is the instrument metadata used to resolve the currency an
// operation's price is denominated in.
type InstrumentInfo struct {
	Symbol      string   `json:"symbol"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Currency    Currency `json:"currency"`
}
