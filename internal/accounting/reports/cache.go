package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

const (
	keyPrefix   = "ledger:reports"
	BumpChannel = "ledger.reports.bump"
)

// Cache keeps rendered reports in Redis under a per-scope version. Posting a
// journal entry bumps the version, which orphans every cached report of that
// scope; orphaned keys expire through their TTL.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.LedgerMetrics
	logger  *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, metrics *observability.LedgerMetrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

func versionKey(scope docstore.Scope) string {
	return strings.Join([]string{keyPrefix, "version", scope.WorkspaceID, scope.OrgID}, ":")
}

// Version returns the scope's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, scope docstore.Scope) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(scope)
	// SETNX keeps concurrent initialisers from resetting a bumped version.
	if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
		return 0, err
	}
	ver, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key for one report with the current version.
func (c *Cache) BuildKey(ctx context.Context, scope docstore.Scope, parts ...string) (string, error) {
	base := strings.Join(append([]string{keyPrefix, scope.WorkspaceID, scope.OrgID}, parts...), ":")
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// FetchJSON loads a cached report or populates it using the loader. Redis
// failures degrade to calling the loader directly.
func (c *Cache) FetchJSON(ctx context.Context, report, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("reports: loader required")
	}
	if c == nil || c.client == nil {
		return load(ctx, loader, dest, nil)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(payload, dest); jsonErr == nil {
			c.metrics.ObserveCache(report, true)
			return nil
		}
		c.logger.Warn("discarding undecodable cached report", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	c.metrics.ObserveCache(report, false)
	return load(ctx, loader, dest, func(raw []byte) {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	})
}

func load(ctx context.Context, loader func(context.Context) (any, error), dest any, store func([]byte)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if store != nil {
		store(raw)
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate bumps the scope's version and publishes the new value.
func (c *Cache) Invalidate(ctx context.Context, scope docstore.Scope) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(scope)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, scope.String()+"@"+strconv.FormatInt(ver, 10)).Err()
}
