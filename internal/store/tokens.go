package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no API token is stored
var ErrNoToken = errors.New("no API token stored")

// LoadToken returns the stored API access token
func (db *DB) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	row := db.QueryRowContext(ctx, `
		SELECT access_token, token_type, expires_at
		FROM api_token
		WHERE id = 1
	`)

	var tok oauth2.Token
	var expiresAt int64
	err := row.Scan(&tok.AccessToken, &tok.TokenType, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}

	if expiresAt > 0 {
		tok.Expiry = time.Unix(expiresAt, 0)
	}
	return &tok, nil
}

// SaveToken stores or replaces the API access token
func (db *DB) SaveToken(ctx context.Context, tok *oauth2.Token) error {
	var expiresAt int64
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry.Unix()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO api_token (id, access_token, token_type, expires_at, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, tok.AccessToken, tok.TokenType, expiresAt)
	return err
}
