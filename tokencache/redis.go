package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/notifd/notifd/auth"
	"github.com/notifd/notifd/internal/metrics"
)

// Config for the Redis-backed verdict cache. Defaults can be loaded via
// envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: TOKENS_KEY_PREFIX
	KeyPrefix string `env:"TOKENS_KEY_PREFIX,default=notifd:tokens:"`
}

// Redis is a verdict cache backed by Redis SET/EX, implementing
// auth.Verifier. A Redis outage degrades to calling the upstream on every
// resolve rather than failing the request.
type Redis struct {
	verifier  auth.Verifier
	ttl       time.Duration
	client    *redis.Client
	keyPrefix string
	log       *slog.Logger
}

// NewRedis wraps verifier with a Redis-backed cache holding verdicts for ttl.
func NewRedis(cfg Config, verifier auth.Verifier, ttl time.Duration, log *slog.Logger) (*Redis, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "notifd:tokens:"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{verifier: verifier, ttl: ttl, client: cl, keyPrefix: prefix, log: log}, nil
}

// NewRedisFromEnv builds a Redis cache using envdecode to populate Config.
func NewRedisFromEnv(verifier auth.Verifier, ttl time.Duration, log *slog.Logger) (*Redis, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return NewRedis(cfg, verifier, ttl, log)
}

// Close closes the Redis client.
func (c *Redis) Close() error { return c.client.Close() }

func (c *Redis) key(token string) string { return c.keyPrefix + token }

// CheckToken implements auth.Verifier.
func (c *Redis) CheckToken(ctx context.Context, token string) (*auth.TokenInfo, error) {
	raw, err := c.client.Get(ctx, c.key(token)).Bytes()
	switch {
	case err == nil:
		var v verdict
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil && (v.Invalid || v.Info != nil) {
			metrics.TokenCacheLookups.WithLabelValues("hit").Inc()
			return v.replay()
		}
		// Unreadable entry; fall through and overwrite it.
	case errors.Is(err, redis.Nil):
	default:
		c.log.WarnContext(ctx, "token cache read failed", slog.String("err", err.Error()))
	}
	metrics.TokenCacheLookups.WithLabelValues("miss").Inc()

	info, err := c.verifier.CheckToken(ctx, token)
	switch {
	case err == nil:
		c.store(ctx, token, verdict{Info: info})
	case errors.Is(err, auth.ErrInvalidToken):
		c.store(ctx, token, verdict{Invalid: true})
	default:
		return nil, err
	}
	return info, err
}

func (c *Redis) store(ctx context.Context, token string, v verdict) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.WarnContext(ctx, "token cache encode failed", slog.String("err", err.Error()))
		return
	}
	if err := c.client.Set(ctx, c.key(token), raw, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "token cache write failed", slog.String("err", err.Error()))
	}
}

var _ auth.Verifier = (*Redis)(nil)
