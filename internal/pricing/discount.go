package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// LinePlatformDiscount is the campaign discount already embedded in a line's
// unit price.
func LinePlatformDiscount(l cart.Line) int64 {
	if l.OriginalUnitPrice == nil {
		return 0
	}
	diff := *l.OriginalUnitPrice - l.UnitPrice
	if diff <= 0 {
		return 0
	}
	return diff * int64(l.Quantity)
}

// PlatformDiscount sums LinePlatformDiscount over the selected lines.
func PlatformDiscount(lines []cart.Line) int64 {
	var total int64
	for _, l := range lines {
		if l.Selected {
			total += LinePlatformDiscount(l)
		}
	}
	return total
}

// VoucherDiscount computes what v takes off subtotal. FIXED vouchers are not
// clamped to the subtotal; the grand total clamps instead.
func VoucherDiscount(v vouchers.Voucher, subtotal int64) int64 {
	switch v.Kind {
	case enums.DiscountKindFixed:
		return v.Value
	case enums.DiscountKindPercent:
		amount := decimal.NewFromInt(subtotal).
			Mul(v.Percent).
			Div(hundred).
			Round(0).
			IntPart()
		if v.MaxDiscount != nil && amount > *v.MaxDiscount {
			amount = *v.MaxDiscount
		}
		if amount < 0 {
			return 0
		}
		return amount
	default:
		return 0
	}
}
