package shipping

import (
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/pkg/carrier"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Carrier package dimensions are not modeled; the carrier accepts a flat 1.
const defaultDimension = 1

// Destination is the selected delivery address as carrier location codes.
type Destination struct {
	AddressID  string
	DistrictID int
	WardCode   string
}

// Valid reports whether both location codes are present.
func (d Destination) Valid() bool {
	return d.DistrictID > 0 && strings.TrimSpace(d.WardCode) != ""
}

// storeRequest is one store's prepared carrier call.
type storeRequest struct {
	req         carrier.FeeRequest
	tier        enums.ServiceTier
	weightGrams int64
}

// buildStoreRequest prepares the carrier call for a group's selected lines.
// The origin comes from the first selected line only.
func buildStoreRequest(g cart.StoreGroup, dest Destination, products cart.ProductSource, tiers TierSelector) (storeRequest, *QuoteError) {
	selected := g.SelectedLines()
	weight := tiers.WeightGrams(selected, products)
	tier := tiers.Select(weight)
	out := storeRequest{tier: tier, weightGrams: weight}

	if len(selected) == 0 || products == nil {
		return out, newQuoteError(enums.QuoteErrorKindMissingOrigin)
	}
	first, ok := products.Product(selected[0].ProductID)
	if !ok {
		return out, newQuoteError(enums.QuoteErrorKindMissingOrigin)
	}
	district, ward, ok := first.Origin()
	if !ok {
		return out, newQuoteError(enums.QuoteErrorKindMissingOrigin)
	}
	if !dest.Valid() {
		return out, newQuoteError(enums.QuoteErrorKindDestinationAddress)
	}

	items := make([]carrier.Item, 0, len(selected))
	for _, l := range selected {
		items = append(items, carrier.Item{
			Name:     l.ProductID,
			Quantity: l.Quantity,
			Weight:   tiers.UnitWeightGrams(products, l.ProductID),
			Length:   defaultDimension,
			Width:    defaultDimension,
			Height:   defaultDimension,
		})
	}

	out.req = carrier.FeeRequest{
		FromDistrictID: district,
		FromWardCode:   ward,
		ToDistrictID:   dest.DistrictID,
		ToWardCode:     dest.WardCode,
		ServiceTypeID:  tier.CarrierServiceTypeID(),
		Weight:         weight,
		Length:         defaultDimension,
		Width:          defaultDimension,
		Height:         defaultDimension,
		Items:          items,
	}
	return out, nil
}
