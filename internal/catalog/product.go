package catalog

import (
	"context"
	"strconv"
	"strings"
)

// Product is the catalog metadata the checkout engine needs for a product id.
type Product struct {
	ID                 string  `json:"id"`
	StoreID            string  `json:"storeId"`
	StoreName          string  `json:"storeName"`
	WeightKg           float64 `json:"weightKg"`
	OriginDistrictCode string  `json:"originDistrictCode"`
	OriginWardCode     string  `json:"originWardCode"`
}

// HasStore reports whether the product resolved to an owning store.
func (p Product) HasStore() bool {
	return strings.TrimSpace(p.StoreID) != ""
}

// Origin returns the numeric district id and ward code of the product's
// shipping origin. ok is false when either code is missing or non-numeric.
func (p Product) Origin() (districtID int, wardCode string, ok bool) {
	district := strings.TrimSpace(p.OriginDistrictCode)
	ward := strings.TrimSpace(p.OriginWardCode)
	if district == "" || ward == "" {
		return 0, "", false
	}
	id, err := strconv.Atoi(district)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	if _, err := strconv.Atoi(ward); err != nil {
		return 0, "", false
	}
	return id, ward, true
}

// Lookup resolves catalog metadata for a single product.
type Lookup interface {
	GetByID(ctx context.Context, productID string) (*Product, error)
}
