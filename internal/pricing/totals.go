package pricing

import "github.com/angelmondragon/storefront-checkout/internal/cart"

// Totals is the priced summary of the selected lines. Amounts are minor units.
type Totals struct {
	Subtotal         int64 `json:"subtotal"`
	PlatformDiscount int64 `json:"platformDiscount"`
	VoucherDiscount  int64 `json:"voucherDiscount"`
	ShippingFee      int64 `json:"shippingFee"`
	Total            int64 `json:"total"`
}

// ComputeTotals assembles the grand total from the pre-discount subtotal of
// the selected lines. The total never goes below zero.
func ComputeTotals(lines []cart.Line, b Bindings, shippingFee int64) Totals {
	t := Totals{
		PlatformDiscount: PlatformDiscount(lines),
		VoucherDiscount:  b.TotalDiscount(),
		ShippingFee:      shippingFee,
	}
	for _, l := range lines {
		if l.Selected {
			t.Subtotal += l.OriginalTotal()
		}
	}
	t.Total = t.Subtotal - t.PlatformDiscount - t.VoucherDiscount + t.ShippingFee
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}
