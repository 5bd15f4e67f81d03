package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/monedero/backend/src/models"
)

// ErrNoStoredToken is returned when no broker token has been saved yet.
var ErrNoStoredToken = errors.New("no broker token stored")

// SaveBrokerToken upserts the single sealed broker token row. Only the
// sealed ciphertext ever reaches the database.
func SaveBrokerToken(db *sql.DB, sealed []byte) error {
	_, err := db.Exec(`
		INSERT INTO broker_tokens (id, token, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			updated_at = excluded.updated_at`,
		sealed, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: saving broker token: %v", models.ErrStoreWriteFailed, err)
	}
	return nil
}

// GetBrokerToken returns the sealed broker token, or ErrNoStoredToken.
func GetBrokerToken(db *sql.DB) ([]byte, error) {
	var sealed []byte
	err := db.QueryRow(`SELECT token FROM broker_tokens WHERE id = 1`).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoStoredToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading broker token: %w", err)
	}
	return sealed, nil
}

// DeleteBrokerToken removes the stored token (logout).
func DeleteBrokerToken(db *sql.DB) error {
	if _, err := db.Exec(`DELETE FROM broker_tokens WHERE id = 1`); err != nil {
		return fmt.Errorf("%w: deleting broker token: %v", models.ErrStoreWriteFailed, err)
	}
	return nil
}
