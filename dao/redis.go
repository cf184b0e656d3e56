package dao

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"singlish-bot/model"
)

const scanBatch = 200

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// ResponseCache memoises matcher results by normalised input. It is
// best-effort: Redis errors turn reads into misses and writes into no-ops.
type ResponseCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	log       *zap.Logger
}

func NewResponseCache(client *redis.Client, keyPrefix string, ttl time.Duration, log *zap.Logger) *ResponseCache {
	if keyPrefix == "" {
		keyPrefix = "intent:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResponseCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		log:       log.With(zap.String("component", "response_cache")),
	}
}

func (c *ResponseCache) key(input string) string {
	return c.keyPrefix + input
}

func (c *ResponseCache) Get(ctx context.Context, input string) (model.ResolutionResult, bool) {
	var result model.ResolutionResult

	data, err := c.client.Get(ctx, c.key(input)).Bytes()
	if errors.Is(err, redis.Nil) {
		return result, false
	}
	if err != nil {
		c.log.Warn("cache get failed", zap.Error(err))
		return result, false
	}

	if err := json.Unmarshal(data, &result); err != nil {
		c.log.Warn("cache entry corrupt, dropping", zap.Error(err), zap.String("key", c.key(input)))
		_ = c.client.Del(ctx, c.key(input)).Err()
		return model.ResolutionResult{}, false
	}
	return result, true
}

func (c *ResponseCache) Put(ctx context.Context, input string, result model.ResolutionResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.log.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(input), data, ttl).Err(); err != nil {
		c.log.Warn("cache put failed", zap.Error(err))
	}
}

func (c *ResponseCache) Delete(ctx context.Context, input string) {
	if err := c.client.Del(ctx, c.key(input)).Err(); err != nil {
		c.log.Warn("cache delete failed", zap.Error(err))
	}
}

// InvalidateAll removes every key under the prefix. It returns the number of
// keys deleted; keys written concurrently with the sweep may survive it.
func (c *ResponseCache) InvalidateAll(ctx context.Context) (int, error) {
	pattern := escapeGlob(c.keyPrefix) + "*"
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (c *ResponseCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ResponseCache) Close() error {
	return c.client.Close()
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// NopCache is used when Redis is disabled.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (model.ResolutionResult, bool) {
	return model.ResolutionResult{}, false
}

func (NopCache) Put(context.Context, string, model.ResolutionResult, time.Duration) {}

func (NopCache) Delete(context.Context, string) {}

func (NopCache) InvalidateAll(context.Context) (int, error) { return 0, nil }
