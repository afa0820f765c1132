package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talkless/talkless/config"
)

// Conn opens and pings a redis client from configuration.
func Conn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DialTimeout: cfg.Timeout,
		Password:    cfg.Password,
		DB:          cfg.DB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}

	return client, nil
}

// EmbeddingCache stores embedding vectors keyed by a hash of the input
// text, so repeated runs over an unchanged article skip the provider call.
type EmbeddingCache struct {
	rdb    *redis.Client
	expiry time.Duration
}

// NewEmbeddingCache wraps a redis client. expiry <= 0 means no TTL.
func NewEmbeddingCache(rdb *redis.Client, expiry time.Duration) *EmbeddingCache {
	return &EmbeddingCache{rdb: rdb, expiry: expiry}
}

func embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text, or nil when absent.
func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, error) {
	raw, err := c.rdb.Get(ctx, embeddingKey(text)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("corrupt embedding cache entry: %w", err)
	}
	return vec, nil
}

// Put stores a vector for text.
func (c *EmbeddingCache) Put(ctx context.Context, text string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, embeddingKey(text), raw, c.expiry).Err()
}
