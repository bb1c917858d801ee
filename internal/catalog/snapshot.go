package catalog

// Snapshot is an immutable view of the catalog cache at one point in time.
type Snapshot struct {
	products map[string]Product
}

// NewSnapshot builds a snapshot from the provided products.
func NewSnapshot(products ...Product) Snapshot {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return Snapshot{products: m}
}

// Product returns the cached metadata for productID.
func (s Snapshot) Product(productID string) (Product, bool) {
	p, ok := s.products[productID]
	return p, ok
}

// Complete reports whether every product id has an entry.
func (s Snapshot) Complete(productIDs []string) bool {
	for _, id := range productIDs {
		if _, ok := s.products[id]; !ok {
			return false
		}
	}
	return true
}

// Len returns the number of cached products.
func (s Snapshot) Len() int {
	return len(s.products)
}

// Merge returns a snapshot holding the entries of both, preferring other on overlap.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	m := make(map[string]Product, len(s.products)+len(other.products))
	for id, p := range s.products {
		m[id] = p
	}
	for id, p := range other.products {
		m[id] = p
	}
	return Snapshot{products: m}
}
