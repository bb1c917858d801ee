package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CatalogProductKey(productID string) string
}

// CachedLookup fronts a Lookup with a shared redis read-through cache. Redis
// failures fall through to the wrapped lookup.
type CachedLookup struct {
	next  Lookup
	store kvStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedLookup wraps next with the redis cache.
func NewCachedLookup(next Lookup, store kvStore, ttl time.Duration, logg *logger.Logger) (*CachedLookup, error) {
	if next == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &CachedLookup{next: next, store: store, ttl: ttl, logg: logg}, nil
}

func (c *CachedLookup) GetByID(ctx context.Context, productID string) (*Product, error) {
	key := c.store.CatalogProductKey(productID)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached Product
		if decodeErr := json.Unmarshal([]byte(raw), &cached); decodeErr == nil {
			return &cached, nil
		}
		c.logg.Warn(c.logg.WithField(ctx, "product_id", productID), "discarding undecodable catalog cache entry")
	case !pkgredis.IsMiss(err):
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"product_id": productID, "error": err.Error()}), "catalog cache read failed")
	}

	product, err := c.next.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(product)
	if err != nil {
		return product, nil
	}
	if setErr := c.store.Set(ctx, key, string(payload), c.ttl); setErr != nil && !errors.Is(setErr, context.Canceled) {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"product_id": productID, "error": setErr.Error()}), "catalog cache write failed")
	}
	return product, nil
}
