package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/monedero/backend/src/models"
)

// InsertSnapshot appends one valuation row. Snapshots are immutable once
// written; this is intentionally append-only, never upsert.
func InsertSnapshot(db *sql.DB, s models.ValuationSnapshot) error {
	_, err := db.Exec(`
		INSERT INTO portfolio_values (total_ars, total_usd, date)
		VALUES (?, ?, ?)`,
		s.TotalARS, s.TotalUSD, s.Date.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting valuation snapshot: %v", models.ErrStoreWriteFailed, err)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (*models.ValuationSnapshot, error) {
	var s models.ValuationSnapshot
	var date string
	if err := row.Scan(&s.ID, &s.TotalARS, &s.TotalUSD, &date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: scanning valuation snapshot: %v", models.ErrDeserializationFailed, err)
	}
	parsed, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %d has malformed date %q", models.ErrDeserializationFailed, s.ID, date)
	}
	s.Date = parsed
	return &s, nil
}

// GetLatestSnapshot returns the most recent valuation row, or nil when the
// time series is empty.
func GetLatestSnapshot(db *sql.DB) (*models.ValuationSnapshot, error) {
	row := db.QueryRow(`
		SELECT id, total_ars, total_usd, date
		FROM portfolio_values
		ORDER BY date DESC
		LIMIT 1`)
	return scanSnapshot(row)
}

// GetPreviousSnapshot returns the second-most-recent valuation row, or nil
// when fewer than two snapshots exist.
func GetPreviousSnapshot(db *sql.DB) (*models.ValuationSnapshot, error) {
	row := db.QueryRow(`
		SELECT id, total_ars, total_usd, date
		FROM portfolio_values
		ORDER BY date DESC
		LIMIT 1 OFFSET 1`)
	return scanSnapshot(row)
}
