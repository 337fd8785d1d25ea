package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenCols = []string{"account_id", "expires_at", "revoked_at"}

func TestTokenConsumeOnce(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewTokenRepo(db)
	repo.Now = func() time.Time { return now }

	mock.ExpectQuery(regexp.QuoteMeta("SELECT account_id, expires_at, revoked_at FROM refresh_tokens")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("u1", now.Add(time.Hour), nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL")).
		WithArgs(now, "h1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Consume(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestTokenConsumeRejectsRevokedExpiredAndRaced(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewTokenRepo(db)
	repo.Now = func() time.Time { return now }
	ctx := context.Background()

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("u1", now.Add(time.Hour), now.Add(-time.Minute)))
	_, err := repo.Consume(ctx, "revoked")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("expired").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("u1", now.Add(-time.Second), nil))
	_, err = repo.Consume(ctx, "expired")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(tokenCols))
	_, err = repo.Consume(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("raced").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("u1", now.Add(time.Hour), nil))
	mock.ExpectExec("UPDATE refresh_tokens").WithArgs(now, "raced").
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.Consume(ctx, "raced")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStoreAndRevokeAll(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	exp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens (account_id, token_hash, expires_at)")).
		WithArgs("u1", "h1", exp).WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Store(context.Background(), "u1", "h1", exp))

	mock.ExpectExec(regexp.QuoteMeta("WHERE account_id=? AND revoked_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), "u1").WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.RevokeAll(context.Background(), "u1"))
}

func newRedisStore(t *testing.T) (*RedisTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisTokenStore(rdb), mr
}

func TestRedisTokenStoreConsumeOnce(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "u1", "h1", time.Now().Add(time.Hour)))
	assert.True(t, mr.Exists("rt:h1"))
	assert.Greater(t, mr.TTL("rt:h1"), 59*time.Minute)

	id, err := s.Consume(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = s.Consume(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTokenStoreExpiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "u1", "h1", time.Now().Add(time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, err := s.Consume(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTokenStoreRevokeAll(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, s.Store(ctx, "u1", "h1", exp))
	require.NoError(t, s.Store(ctx, "u1", "h2", exp))
	require.NoError(t, s.Store(ctx, "u2", "h3", exp))

	require.NoError(t, s.RevokeAll(ctx, "u1"))
	assert.False(t, mr.Exists("rt:h1"))
	assert.False(t, mr.Exists("rt:h2"))
	assert.False(t, mr.Exists("rt:acct:u1"))

	id, err := s.Consume(ctx, "h3")
	require.NoError(t, err)
	assert.Equal(t, "u2", id)
}
