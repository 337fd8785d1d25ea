package config

// Redis holds the refresh-token rotation store when TOKEN_STORE=redis.  The
// store is required for refresh to work, so a dead server is a startup error.

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the server described by RedisOptions and pings
// it once.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	opts, err := RedisOptions()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(errors.New("redis ping "+opts.Addr), err)
	}
	return client, nil
}

// RedisOptions reads the connection settings:
//
//	REDIS_URL                    redis:// or rediss:// URL, wins over the rest
//	REDIS_HOST + REDIS_PORT      server address
//	REDIS_ADDR                   host:port shorthand
//	REDIS_PASSWORD, REDIS_DB     auth and database number
//	REDIS_TLS                    "true" or "1" enables TLS
func RedisOptions() (*redis.Options, error) {
	if u := envStr("REDIS_URL", ""); u != "" {
		return redis.ParseURL(u)
	}

	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}

	r := &reader{}
	opts := &redis.Options{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       r.intOr("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if len(r.problems) > 0 {
		return nil, errors.New("config: " + strings.Join(r.problems, "; "))
	}
	return opts, nil
}
