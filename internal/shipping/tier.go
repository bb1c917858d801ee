package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

const (
	DefaultLightTierMaxGrams int64 = 7500
	DefaultItemWeightGrams   int64 = 500
	gramsPerKilogram         int64 = 1000
)

// TierSelector derives the carrier service tier from package weight.
type TierSelector struct {
	lightMaxGrams      int64
	defaultWeightGrams int64
}

// NewTierSelector builds a selector; non-positive arguments fall back to the
// defaults.
func NewTierSelector(lightMaxGrams, defaultWeightGrams int64) TierSelector {
	if lightMaxGrams <= 0 {
		lightMaxGrams = DefaultLightTierMaxGrams
	}
	if defaultWeightGrams <= 0 {
		defaultWeightGrams = DefaultItemWeightGrams
	}
	return TierSelector{lightMaxGrams: lightMaxGrams, defaultWeightGrams: defaultWeightGrams}
}

// UnitWeightGrams resolves one unit of productID to grams.
func (s TierSelector) UnitWeightGrams(products cart.ProductSource, productID string) int64 {
	def := s.defaultWeight()
	if products == nil {
		return def
	}
	p, ok := products.Product(productID)
	if !ok || p.WeightKg <= 0 {
		return def
	}
	grams := decimal.NewFromFloat(p.WeightKg).
		Mul(decimal.NewFromInt(gramsPerKilogram)).
		Round(0).
		IntPart()
	if grams <= 0 {
		return def
	}
	return grams
}

// WeightGrams sums the weight of the selected lines.
func (s TierSelector) WeightGrams(lines []cart.Line, products cart.ProductSource) int64 {
	var total int64
	for _, l := range lines {
		if !l.Selected {
			continue
		}
		total += s.UnitWeightGrams(products, l.ProductID) * int64(l.Quantity)
	}
	return total
}

// Select maps a total weight onto a tier.
func (s TierSelector) Select(grams int64) enums.ServiceTier {
	limit := s.lightMaxGrams
	if limit <= 0 {
		limit = DefaultLightTierMaxGrams
	}
	if grams <= limit {
		return enums.ServiceTierLight
	}
	return enums.ServiceTierHeavy
}

func (s TierSelector) defaultWeight() int64 {
	if s.defaultWeightGrams <= 0 {
		return DefaultItemWeightGrams
	}
	return s.defaultWeightGrams
}
