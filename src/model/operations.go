package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/username/monedero/backend/src/models"
)

// InsertOperation records one applied operation in the immutable audit
// ledger. A failure here is surfaced, never swallowed.
func InsertOperation(db *sql.DB, op models.LedgerOperation) error {
	_, err := db.Exec(`
		INSERT INTO operations (operation_id, date, type, symbol, quantity, price_ars, price_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.OperationID, op.Date.Format(time.RFC3339), op.Type, op.Symbol,
		op.Quantity, op.PriceARS, op.PriceUSD,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting operation %d: %v", models.ErrStoreWriteFailed, op.OperationID, err)
	}
	return nil
}

// OperationExists reports whether an operation id was already applied.
func OperationExists(db *sql.DB, operationID int64) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM operations WHERE operation_id = ?`, operationID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking operation %d: %w", operationID, err)
	}
	return count > 0, nil
}

// ListOperations returns the audit ledger, newest first.
func ListOperations(db *sql.DB) ([]models.LedgerOperation, error) {
	rows, err := db.Query(`
		SELECT id, operation_id, date, type, symbol, quantity, price_ars, price_usd
		FROM operations
		ORDER BY date DESC, operation_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	var ops []models.LedgerOperation
	for rows.Next() {
		var op models.LedgerOperation
		var date string
		if err := rows.Scan(&op.ID, &op.OperationID, &date, &op.Type, &op.Symbol, &op.Quantity, &op.PriceARS, &op.PriceUSD); err != nil {
			return nil, fmt.Errorf("%w: scanning operation: %v", models.ErrDeserializationFailed, err)
		}
		parsed, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, fmt.Errorf("%w: operation %d has malformed date %q", models.ErrDeserializationFailed, op.OperationID, date)
		}
		op.Date = parsed
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
