package vouchers

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxConcurrentFetches = 8

// Snapshot is the voucher catalog as loaded for the products in a cart. A
// nil snapshot has not loaded.
type Snapshot struct {
	complete  bool
	byProduct map[string]ProductVouchers
}

// NewSnapshot builds a fully loaded snapshot.
func NewSnapshot(entries ...ProductVouchers) *Snapshot {
	m := make(map[string]ProductVouchers, len(entries))
	for _, e := range entries {
		m[e.ProductID] = e
	}
	return &Snapshot{complete: true, byProduct: m}
}

// Loaded reports whether every requested product's vouchers were fetched.
func (s *Snapshot) Loaded() bool {
	return s != nil && s.complete
}

// For returns the vouchers known for productID.
func (s *Snapshot) For(productID string) (ProductVouchers, bool) {
	if s == nil {
		return ProductVouchers{}, false
	}
	pv, ok := s.byProduct[productID]
	return pv, ok
}

// Find looks up a shop voucher by code and scope. Only vouchers owned by
// storeID match, whatever the scope.
func (s *Snapshot) Find(code string, scope enums.VoucherScope, storeID string) (Voucher, bool) {
	if s == nil {
		return Voucher{}, false
	}
	for _, pv := range s.byProduct {
		for _, v := range pv.ShopVouchers {
			if v.Code != code || v.Scope != scope || v.StoreID != storeID {
				continue
			}
			return v, true
		}
	}
	return Voucher{}, false
}

// Load fetches vouchers for every product id concurrently. Failed products
// are logged and leave the snapshot incomplete.
func Load(ctx context.Context, catalog Catalog, productIDs []string, logg *logger.Logger) (*Snapshot, error) {
	var (
		mu     sync.Mutex
		failed bool
	)
	snap := &Snapshot{byProduct: make(map[string]ProductVouchers, len(productIDs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, id := range dedupe(productIDs) {
		g.Go(func() error {
			pv, err := catalog.GetForProduct(gctx, id)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = true
				logg.Warn(logg.WithFields(gctx, map[string]any{"product_id": id, "error": err.Error()}), "voucher catalog fetch failed")
				return nil
			}
			entry := ProductVouchers{ProductID: id}
			if pv != nil {
				entry = *pv
				entry.ProductID = id
			}
			snap.byProduct[id] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.complete = !failed
	return snap, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
