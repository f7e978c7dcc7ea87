package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
)

const keyPrefix = "product:"

// ProductCache wraps a ProductRepository with a read-through Redis cache for
// single-product lookups. List and upsert paths go straight to the store;
// upserts invalidate the affected keys so readers never see a stale product
// for longer than the TTL.
type ProductCache struct {
	inner  repository.ProductRepository
	client *redis.Client
	ttl    time.Duration
}

// New wraps the given repository with a Redis read-through cache.
func New(inner repository.ProductRepository, client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{inner: inner, client: client, ttl: ttl}
}

// GetByID serves from Redis when possible and falls back to the store. Cache
// problems are never surfaced: a broken cache degrades to store reads.
func (c *ProductCache) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := keyPrefix + strconv.FormatInt(id, 10)

	// Cache errors and corrupt entries fall through to the store.
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var p domain.Product
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		_ = c.client.Set(ctx, key, data, c.ttl).Err()
	}

	return p, nil
}

// UpsertBatch delegates to the store and invalidates the cached entries of
// every product in the batch, failed ones included.
func (c *ProductCache) UpsertBatch(ctx context.Context, products []domain.Product) (repository.UpsertResult, error) {
	result, err := c.inner.UpsertBatch(ctx, products)
	if err != nil {
		return result, err
	}

	keys := make([]string, 0, len(products))
	for _, p := range products {
		keys = append(keys, keyPrefix+strconv.FormatInt(p.ID, 10))
	}
	if len(keys) > 0 {
		if delErr := c.client.Del(ctx, keys...).Err(); delErr != nil {
			return result, fmt.Errorf("invalidate product cache: %w", delErr)
		}
	}

	return result, nil
}

// List bypasses the cache.
func (c *ProductCache) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	return c.inner.List(ctx, filter)
}

// ListPage bypasses the cache.
func (c *ProductCache) ListPage(ctx context.Context, offset, limit int) ([]domain.Product, error) {
	return c.inner.ListPage(ctx, offset, limit)
}

// Ping checks the underlying store, not Redis: the cache is optional.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}
