package checkout

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
)

// State is everything the checkout engine knows about one user's cart. It is
// only ever replaced through Reduce.
type State struct {
	CartVersion uint64
	Lines       []cart.Line
	Platform    map[string]cart.PlatformVoucherInfo
	Products    catalog.Snapshot
	Vouchers    *vouchers.Snapshot
	Bindings    pricing.Bindings
	Groups      []cart.StoreGroup
	Address     shipping.Destination
	Now         time.Time

	// Revocations holds the batch produced by the last event's validation pass.
	Revocations []pricing.Revocation

	// QuoteGeneration is the generation of the most recently started quote.
	QuoteGeneration uint64
	QuoteInFlight   bool
	// QuoteDirty is set when quoting inputs changed after the last quote started.
	QuoteDirty         bool
	Shipping           *shipping.Result
	StaleQuotesDropped uint64
}

// CatalogComplete reports whether store metadata is cached for every product
// that needs a lookup.
func (s State) CatalogComplete() bool {
	return s.Products.Complete(cart.LookupProductIDs(s.Lines))
}

// SelectedLines returns the selected lines in cart order.
func (s State) SelectedLines() []cart.Line {
	return cart.Selected(s.Lines)
}

// ShippingFee is the fee counted toward the total: zero unless the latest
// quote succeeded for every store.
func (s State) ShippingFee() int64 {
	if s.Shipping == nil || s.Shipping.Blocked {
		return 0
	}
	return s.Shipping.TotalFee
}

// Totals prices the selected lines with the current bindings and shipping fee.
func (s State) Totals() pricing.Totals {
	return pricing.ComputeTotals(s.Lines, s.Bindings, s.ShippingFee())
}

// BlockReason explains why the checkout cannot be submitted, or is empty when
// it can.
func (s State) BlockReason() string {
	switch {
	case len(s.SelectedLines()) == 0:
		return "no items selected"
	case !s.Address.Valid():
		return "no delivery address selected"
	case s.QuoteInFlight || s.QuoteDirty || s.Shipping == nil:
		return "shipping fee is being calculated"
	case s.Shipping.Blocked:
		return "shipping fee could not be calculated"
	default:
		return ""
	}
}

// NeedsQuote reports whether a new shipping quote should be started.
func (s State) NeedsQuote() bool {
	return s.Address.Valid() && len(s.SelectedLines()) > 0 && (s.QuoteDirty || (s.Shipping == nil && !s.QuoteInFlight))
}
