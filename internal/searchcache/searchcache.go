// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package searchcache wraps a search.Index with a Redis-backed response
// cache. Cache failures never fail a search: the wrapped index is queried
// instead. Failed index calls are not cached.
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/citation-engine/internal/search"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Verify interface compliance
var _ search.Index = (*Cache)(nil)

const (
	defaultPrefix = "citation-engine:search:"
	defaultTTL    = 24 * time.Hour
)

// Cache is a search.Index that serves repeated queries from Redis.
type Cache struct {
	next   search.Index
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// New wraps next. A zero ttl or empty prefix selects the defaults.
func New(next search.Index, client *redis.Client, ttl time.Duration, prefix string, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{next: next, client: client, ttl: ttl, prefix: prefix, logger: logger}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// Name returns the wrapped index name.
func (c *Cache) Name() string { return c.next.Name() }

// Search returns the cached papers for query, or queries the wrapped index
// and caches the result (including an empty one).
func (c *Cache) Search(ctx context.Context, query search.Query) ([]types.Paper, error) {
	key, err := c.key(query)
	if err != nil {
		return c.next.Search(ctx, query)
	}

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var papers []types.Paper
		if jerr := json.Unmarshal(data, &papers); jerr == nil {
			return papers, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("search cache unavailable", "error", err)
	}

	papers, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, jerr := json.Marshal(papers); jerr == nil {
		if serr := c.client.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.logger.Warn("search cache write failed", "error", serr)
		}
	}
	return papers, nil
}

// key derives a stable cache key from the index name and query.
func (c *Cache) key(query search.Query) (string, error) {
	data, err := json.Marshal(query)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return c.prefix + c.next.Name() + ":" + hex.EncodeToString(sum[:]), nil
}
