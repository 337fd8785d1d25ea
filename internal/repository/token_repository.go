package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// TokenRepo records refresh token ids by hash (single 'token_hash' column)
// so that each refresh token can be used exactly once.
type TokenRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db, Now: time.Now} }

// Store inserts a refresh token hash row.
func (r *TokenRepo) Store(ctx context.Context, accountID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (account_id, token_hash, expires_at) VALUES (?,?,?)",
		accountID, tokenHash, exp.UTC())
	return errors.Wrap(err, "store refresh token")
}

// Consume marks a live token as revoked and returns its account id.  A
// missing, revoked or expired token, or one consumed concurrently by another
// request, yields ErrNotFound.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash string) (string, error) {
	var (
		accountID string
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT account_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&accountID, &expiresAt, &revokedAt)
	if err != nil {
		return "", notFound(err, "lookup refresh token")
	}
	now := r.Now().UTC()
	if revokedAt.Valid || now.After(expiresAt) {
		return "", ErrNotFound
	}

	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now, tokenHash)
	if err != nil {
		return "", errors.Wrap(err, "revoke refresh token")
	}
	if err := requireAffected(res); err != nil {
		return "", err
	}
	return accountID, nil
}

// RevokeAll revokes every active token of an account.
func (r *TokenRepo) RevokeAll(ctx context.Context, accountID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE account_id=? AND revoked_at IS NULL",
		r.Now().UTC(), accountID)
	return errors.Wrap(err, "revoke account tokens")
}
