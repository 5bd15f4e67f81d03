package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/monedero/backend/src/models"
)

// The expenses and incomes tables share one shape; table names are fixed by
// the callers below, never caller input.
func insertLedgerEntry(db *sql.DB, table string, e models.LedgerEntry) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO `+table+` (name, amount_ars, amount_usd, date) VALUES (?, ?, ?, ?)`,
		e.Name, e.AmountARS, e.AmountUSD, e.Date.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting into %s: %v", models.ErrStoreWriteFailed, table, err)
	}
	return res.LastInsertId()
}

func listLedgerEntries(db *sql.DB, table, month string) ([]models.LedgerEntry, error) {
	rows, err := db.Query(
		`SELECT id, name, amount_ars, amount_usd, date FROM `+table+`
		 WHERE strftime('%Y-%m', date) = ?
		 ORDER BY date DESC`, month,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var date string
		if err := rows.Scan(&e.ID, &e.Name, &e.AmountARS, &e.AmountUSD, &date); err != nil {
			return nil, fmt.Errorf("%w: scanning %s row: %v", models.ErrDeserializationFailed, table, err)
		}
		parsed, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d has malformed date %q", models.ErrDeserializationFailed, table, e.ID, date)
		}
		e.Date = parsed
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func ledgerMonthTotals(db *sql.DB, table, month string) (models.LedgerSummary, error) {
	summary := models.LedgerSummary{Month: month}
	err := db.QueryRow(
		`SELECT COALESCE(SUM(amount_ars), 0), COALESCE(SUM(amount_usd), 0)
		 FROM `+table+` WHERE strftime('%Y-%m', date) = ?`, month,
	).Scan(&summary.TotalARS, &summary.TotalUSD)
	if err != nil {
		return summary, fmt.Errorf("summing %s: %w", table, err)
	}
	return summary, nil
}

func deleteLedgerEntry(db *sql.DB, table string, id int64) error {
	res, err := db.Exec(`DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting from %s: %v", models.ErrStoreWriteFailed, table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Expenses ledger.

func InsertExpense(db *sql.DB, e models.LedgerEntry) (int64, error) {
	return insertLedgerEntry(db, "expenses", e)
}

func ListExpenses(db *sql.DB, month string) ([]models.LedgerEntry, error) {
	return listLedgerEntries(db, "expenses", month)
}

func ExpenseMonthTotals(db *sql.DB, month string) (models.LedgerSummary, error) {
	return ledgerMonthTotals(db, "expenses", month)
}

func DeleteExpense(db *sql.DB, id int64) error {
	return deleteLedgerEntry(db, "expenses", id)
}

// Incomes ledger.

func InsertIncome(db *sql.DB, e models.LedgerEntry) (int64, error) {
	return insertLedgerEntry(db, "incomes", e)
}

func ListIncomes(db *sql.DB, month string) ([]models.LedgerEntry, error) {
	return listLedgerEntries(db, "incomes", month)
}

func IncomeMonthTotals(db *sql.DB, month string) (models.LedgerSummary, error) {
	return ledgerMonthTotals(db, "incomes", month)
}

func DeleteIncome(db *sql.DB, id int64) error {
	return deleteLedgerEntry(db, "incomes", id)
}

// Gross income running total. The latest row by date wins; Set inserts a new
// baseline, Add folds an amount into the latest one.

func GetGrossIncome(db *sql.DB) (*models.GrossIncome, error) {
	var g models.GrossIncome
	var date string
	err := db.QueryRow(
		`SELECT id, amount_ars, amount_usd, date FROM gross_income ORDER BY date DESC, id DESC LIMIT 1`,
	).Scan(&g.ID, &g.AmountARS, &g.AmountUSD, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning gross income: %v", models.ErrDeserializationFailed, err)
	}
	parsed, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, fmt.Errorf("%w: gross income row %d has malformed date %q", models.ErrDeserializationFailed, g.ID, date)
	}
	g.Date = parsed
	return &g, nil
}

func SetGrossIncome(db *sql.DB, amountARS, amountUSD float64, date time.Time) error {
	_, err := db.Exec(
		`INSERT INTO gross_income (amount_ars, amount_usd, date) VALUES (?, ?, ?)`,
		amountARS, amountUSD, date.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: setting gross income: %v", models.ErrStoreWriteFailed, err)
	}
	return nil
}

func AddToGrossIncome(db *sql.DB, amountARS, amountUSD float64) error {
	current, err := GetGrossIncome(db)
	if err != nil {
		return err
	}
	if current == nil {
		return SetGrossIncome(db, amountARS, amountUSD, time.Now())
	}
	_, err = db.Exec(
		`UPDATE gross_income SET amount_ars = ?, amount_usd = ? WHERE id = ?`,
		current.AmountARS+amountARS, current.AmountUSD+amountUSD, current.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: adding to gross income: %v", models.ErrStoreWriteFailed, err)
	}
	return nil
}
