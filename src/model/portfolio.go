package model

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/monedero/backend/src/models"
)

// ErrPositionNotFound is returned when a symbol has no portfolio row.
var ErrPositionNotFound = errors.New("position not found")

// scanPosition parses one positions row into its typed record. A row that
// does not scan or whose date does not parse fails fast instead of leaking
// zero values into cost-basis arithmetic.
func scanPosition(scanner interface{ Scan(...any) error }) (models.Position, error) {
	var p models.Position
	var date string
	var open int
	if err := scanner.Scan(
		&p.ID,
		&p.Symbol,
		&p.Description,
		&p.Type,
		&p.Quantity,
		&p.AvgCostARS,
		&p.AvgCostUSD,
		&p.LastPriceARS,
		&p.LastPriceUSD,
		&open,
		&date,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("%w: scanning position: %v", models.ErrDeserializationFailed, err)
	}
	p.OpenPosition = open != 0
	parsed, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return p, fmt.Errorf("%w: position %s has malformed date %q", models.ErrDeserializationFailed, p.Symbol, date)
	}
	p.Date = parsed
	return p, nil
}

const positionColumns = `id, symbol, description, type, quantity, avg_cost_ars, avg_cost_usd, last_price_ars, last_price_usd, open_position, date`

// GetAllPositions returns every portfolio row ordered by symbol ascending,
// deterministic for UI consumption and testing.
func GetAllPositions(db *sql.DB) ([]models.Position, error) {
	rows, err := db.Query(`SELECT ` + positionColumns + ` FROM positions ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetPositionBySymbol returns the row for a symbol, or ErrPositionNotFound.
func GetPositionBySymbol(db *sql.DB, symbol string) (*models.Position, error) {
	row := db.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE symbol = ?`, symbol)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return &p, nil
}

// InsertPosition creates a new portfolio row for a symbol.
func InsertPosition(db *sql.DB, p models.Position) error {
	open := 0
	if p.OpenPosition {
		open = 1
	}
	_, err := db.Exec(`
		INSERT INTO positions (symbol, description, type, quantity, avg_cost_ars, avg_cost_usd, last_price_ars, last_price_usd, open_position, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Description, p.Type, p.Quantity,
		p.AvgCostARS, p.AvgCostUSD, p.LastPriceARS, p.LastPriceUSD,
		open, p.Date.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting position %s: %v", models.ErrStoreWriteFailed, p.Symbol, err)
	}
	return nil
}

// UpdatePosition overwrites the mutable columns of a symbol's row.
func UpdatePosition(db *sql.DB, p models.Position) error {
	open := 0
	if p.OpenPosition {
		open = 1
	}
	res, err := db.Exec(`
		UPDATE positions
		SET quantity = ?, avg_cost_ars = ?, avg_cost_usd = ?, last_price_ars = ?, last_price_usd = ?, open_position = ?, date = ?
		WHERE symbol = ?`,
		p.Quantity, p.AvgCostARS, p.AvgCostUSD, p.LastPriceARS, p.LastPriceUSD,
		open, p.Date.Format(time.RFC3339), p.Symbol,
	)
	if err != nil {
		return fmt.Errorf("%w: updating position %s: %v", models.ErrStoreWriteFailed, p.Symbol, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: updating position %s: %v", models.ErrStoreWriteFailed, p.Symbol, ErrPositionNotFound)
	}
	return nil
}

// UpdatePositionPrices refreshes only the observed market prices of a symbol
// and re-flags it open. Cost basis is never touched by a price sync.
func UpdatePositionPrices(db *sql.DB, symbol string, priceARS, priceUSD float64, date time.Time) error {
	_, err := db.Exec(`
		UPDATE positions
		SET last_price_ars = ?, last_price_usd = ?, open_position = 1, date = ?
		WHERE symbol = ?`,
		priceARS, priceUSD, date.Format(time.RFC3339), symbol,
	)
	if err != nil {
		return fmt.Errorf("%w: updating prices for %s: %v", models.ErrStoreWriteFailed, symbol, err)
	}
	return nil
}

// MarkClosedExcept flags every symbol not present in openSymbols as closed.
// The rows themselves are retained for history. Returns the number of rows
// newly closed.
func MarkClosedExcept(db *sql.DB, openSymbols []string, date time.Time) (int64, error) {
	query := `UPDATE positions SET open_position = 0, date = ? WHERE open_position = 1`
	args := []any{date.Format(time.RFC3339)}
	if len(openSymbols) > 0 {
		query += ` AND symbol NOT IN (?` + strings.Repeat(",?", len(openSymbols)-1) + `)`
		for _, s := range openSymbols {
			args = append(args, s)
		}
	}
	res, err := db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: closing absent positions: %v", models.ErrStoreWriteFailed, err)
	}
	return res.RowsAffected()
}

// CountPositions returns the number of portfolio rows.
func CountPositions(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM positions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting positions: %w", err)
	}
	return count, nil
}
