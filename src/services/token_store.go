package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/username/monedero/backend/src/model"
	"github.com/username/monedero/backend/src/security"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no broker session has been established yet.
var ErrNoToken = errors.New("no broker session: authentication required")

// TokenStore persists the broker's OAuth2 token pair sealed at rest. The
// plaintext token only ever exists in memory.
type TokenStore struct {
	db    *sql.DB
	vault *security.TokenVault
}

func NewTokenStore(db *sql.DB, vault *security.TokenVault) *TokenStore {
	return &TokenStore{db: db, vault: vault}
}

// Save seals and upserts the token pair.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	plaintext, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	sealed, err := s.vault.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("sealing token: %w", err)
	}
	return model.SaveBrokerToken(s.db, sealed)
}

// Load opens and returns the stored token pair, or ErrNoToken.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	sealed, err := model.GetBrokerToken(s.db)
	if errors.Is(err, model.ErrNoStoredToken) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	plaintext, err := s.vault.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("unsealing token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(plaintext, &tok); err != nil {
		return nil, fmt.Errorf("unmarshaling token: %w", err)
	}
	return &tok, nil
}

// Delete removes the stored token pair.
func (s *TokenStore) Delete() error {
	return model.DeleteBrokerToken(s.db)
}
