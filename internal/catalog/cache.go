package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxConcurrentLookups = 8

// Cache is the shared product-id keyed catalog arena. Entries are only added
// by the fetch that resolved them and are merged, never replaced wholesale.
type Cache struct {
	lookup   Lookup
	logg     *logger.Logger
	mu       sync.RWMutex
	products map[string]Product
	inflight singleflight.Group
}

// NewCache builds an empty cache backed by lookup.
func NewCache(lookup Lookup, logg *logger.Logger) (*Cache, error) {
	if lookup == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	return &Cache{
		lookup:   lookup,
		logg:     logg,
		products: make(map[string]Product),
	}, nil
}

// Snapshot copies the current cache contents.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(map[string]Product, len(c.products))
	for id, p := range c.products {
		m[id] = p
	}
	return Snapshot{products: m}
}

// Get returns a cached entry without fetching.
func (c *Cache) Get(productID string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	return p, ok
}

// EnsureLoaded fetches every product id missing from the cache and joins the
// fan-out before returning. Lookup failures are logged and leave the entry
// missing; they never fail the call. Only ctx cancellation is returned.
func (c *Cache) EnsureLoaded(ctx context.Context, productIDs []string) error {
	missing := c.missing(productIDs)
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for _, id := range missing {
		g.Go(func() error {
			return c.resolve(gctx, id)
		})
	}
	return g.Wait()
}

func (c *Cache) missing(productIDs []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{}, len(productIDs))
	out := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id == "" {
			continue
		}
		if _, ok := c.products[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolve coalesces concurrent fetches of the same id. The shared fetch runs
// detached from the caller so one caller cancelling does not fail the others.
func (c *Cache) resolve(ctx context.Context, productID string) error {
	ch := c.inflight.DoChan(productID, func() (any, error) {
		product, err := c.lookup.GetByID(context.WithoutCancel(ctx), productID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("catalog returned no product for %s", productID)
		}
		p := *product
		if p.ID == "" {
			p.ID = productID
		}
		c.merge(p)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"product_id": productID,
				"error":      res.Err.Error(),
			}), "catalog lookup unavailable")
		}
		return nil
	}
}

func (c *Cache) merge(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}
