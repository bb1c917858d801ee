package cart

import (
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

const unknownStorePrefix = "unknown-"

// ProductSource reads catalog metadata already resolved into the cache.
type ProductSource interface {
	Product(productID string) (catalog.Product, bool)
}

// StoreGroup is the derived per-store view of the cart.
type StoreGroup struct {
	StoreID          string
	StoreName        string
	Lines            []Line
	SelectedSubtotal int64
	// Resolved is false for the synthetic groups of lines whose store is unknown.
	Resolved bool
}

// SelectedLines returns the group's selected lines.
func (g StoreGroup) SelectedLines() []Line {
	return Selected(g.Lines)
}

// UnknownStoreKey is the synthetic group key for a product without store metadata.
func UnknownStoreKey(productID string) string {
	return unknownStorePrefix + productID
}

// Group places every line into exactly one store group, ordered by the first
// time each store key is seen. Combo lines do not drive catalog lookups but
// still join their store when the product's metadata happens to be cached.
func Group(lines []Line, products ProductSource) []StoreGroup {
	index := make(map[string]int)
	groups := make([]StoreGroup, 0)

	for _, line := range lines {
		key, name, resolved := storeKeyFor(line, products)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, StoreGroup{StoreID: key, StoreName: name, Resolved: resolved})
		}
		g := &groups[pos]
		g.Lines = append(g.Lines, line)
		if line.Selected {
			g.SelectedSubtotal += line.Total()
		}
	}
	return groups
}

func storeKeyFor(line Line, products ProductSource) (key, name string, resolved bool) {
	if products != nil {
		if p, ok := products.Product(line.ProductID); ok && p.HasStore() {
			return p.StoreID, p.StoreName, true
		}
	}
	return UnknownStoreKey(line.ProductID), "", false
}

// LookupProductIDs lists the distinct product ids whose catalog metadata the
// grouping needs. Combo lines are skipped.
func LookupProductIDs(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Kind == enums.ItemKindCombo {
			continue
		}
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		out = append(out, l.ProductID)
	}
	return out
}

// ProductIDs lists every distinct product id referenced by lines.
func ProductIDs(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		out = append(out, l.ProductID)
	}
	return out
}

// StoreOf resolves the store id owning productID, if known.
func StoreOf(products ProductSource, productID string) (string, bool) {
	if products == nil {
		return "", false
	}
	p, ok := products.Product(productID)
	if !ok || !p.HasStore() {
		return "", false
	}
	return p.StoreID, true
}
