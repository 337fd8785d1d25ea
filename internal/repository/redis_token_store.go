package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps refresh token hashes in Redis.  Each hash maps to its
// account id under rt:<hash> with the token's remaining lifetime as TTL, and
// rt:acct:<id> holds the set of an account's live hashes for bulk
// revocation.
type RedisTokenStore struct {
	RDB *redis.Client
	Now func() time.Time
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{RDB: rdb, Now: time.Now}
}

func tokenKey(hash string) string { return "rt:" + hash }
func accountSetKey(id string) string { return "rt:acct:" + id }

// Store saves the hash until exp.
func (s *RedisTokenStore) Store(ctx context.Context, accountID, tokenHash string, exp time.Time) error {
	ttl := exp.Sub(s.Now())
	if ttl <= 0 {
		return nil
	}
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, tokenKey(tokenHash), accountID, ttl)
		p.SAdd(ctx, accountSetKey(accountID), tokenHash)
		p.Expire(ctx, accountSetKey(accountID), ttl)
		return nil
	})
	return errors.Wrap(err, "redis store refresh token")
}

// Consume atomically removes the hash and returns its account id.
func (s *RedisTokenStore) Consume(ctx context.Context, tokenHash string) (string, error) {
	accountID, err := s.RDB.GetDel(ctx, tokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "redis consume refresh token")
	}
	s.RDB.SRem(ctx, accountSetKey(accountID), tokenHash)
	return accountID, nil
}

// RevokeAll deletes every live token of an account.
func (s *RedisTokenStore) RevokeAll(ctx context.Context, accountID string) error {
	set := accountSetKey(accountID)
	hashes, err := s.RDB.SMembers(ctx, set).Result()
	if err != nil {
		return errors.Wrap(err, "redis list account tokens")
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, tokenKey(h))
	}
	keys = append(keys, set)
	return errors.Wrap(s.RDB.Del(ctx, keys...).Err(), "redis revoke account tokens")
}
