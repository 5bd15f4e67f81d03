package models

import "time"

// LedgerEntry is one row of the expenses or incomes ledger. Amounts are kept
// in both currencies, converted at entry time with the rate then in effect.
type LedgerEntry struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	AmountARS float64   `json:"amount_ars"`
	AmountUSD float64   `json:"amount_usd"`
	Date      time.Time `json:"date"`
}

// LedgerSummary is the month total of a ledger in both currencies.
type LedgerSummary struct {
	Month    string  `json:"month"` // YYYY-MM
	TotalARS float64 `json:"total_ars"`
	TotalUSD float64 `json:"total_usd"`
}

// GrossIncome is the running gross-income total; the latest row wins.
type GrossIncome struct {
	ID        int64     `json:"id,omitempty"`
	AmountARS float64   `json:"amount_ars"`
	AmountUSD float64   `json:"amount_usd"`
	Date      time.Time `json:"date"`
}
