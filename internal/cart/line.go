package cart

import (
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// IdentityMode is the single identity a cart line carries.
type IdentityMode int

const (
	IdentityProduct IdentityMode = iota
	IdentityVariant
	IdentityCombo
)

// Line is one purchasable unit in the cart. Prices are minor currency units;
// UnitPrice already reflects any platform campaign discount.
type Line struct {
	ID                string
	ProductID         string
	VariantID         *string
	ComboID           *string
	Quantity          int
	UnitPrice         int64
	OriginalUnitPrice *int64
	Kind              enums.ItemKind
	Selected          bool
}

// PlatformVoucherInfo records the campaign voucher already reflected in a
// product's unit price. It only re-asserts the campaign at submission.
type PlatformVoucherInfo struct {
	CampaignVoucherID string
	DiscountPerUnit   int64
	InCampaign        bool
}

// Eligible reports whether the product should carry a platform voucher on submit.
func (p PlatformVoucherInfo) Eligible() bool {
	return p.DiscountPerUnit > 0 || p.InCampaign
}

// Mode returns the line's identity mode.
func (l Line) Mode() IdentityMode {
	switch {
	case l.Kind == enums.ItemKindCombo:
		return IdentityCombo
	case l.VariantID != nil:
		return IdentityVariant
	default:
		return IdentityProduct
	}
}

// Total is unit price times quantity.
func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// OriginalTotal prices the line before campaign discounts, falling back to
// the unit price when no original price is known.
func (l Line) OriginalTotal() int64 {
	price := l.UnitPrice
	if l.OriginalUnitPrice != nil {
		price = *l.OriginalUnitPrice
	}
	return price * int64(l.Quantity)
}

// Validate enforces that exactly one identity mode holds.
func (l Line) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "line id is required")
	}
	if strings.TrimSpace(l.ProductID) == "" {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: product id is required", l.ID)
	}
	if l.Quantity <= 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: quantity must be positive", l.ID)
	}
	if l.UnitPrice < 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: unit price must not be negative", l.ID)
	}
	if !l.Kind.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: invalid kind %q", l.ID, l.Kind)
	}

	hasCombo := l.ComboID != nil && strings.TrimSpace(*l.ComboID) != ""
	hasVariant := l.VariantID != nil && strings.TrimSpace(*l.VariantID) != ""
	switch l.Kind {
	case enums.ItemKindCombo:
		if !hasCombo {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: combo line requires a combo id", l.ID)
		}
		if l.VariantID != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: combo line cannot carry a variant id", l.ID)
		}
	default:
		if l.ComboID != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: product line cannot carry a combo id", l.ID)
		}
		if l.VariantID != nil && !hasVariant {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %s: variant id must not be blank", l.ID)
		}
	}
	return nil
}

// Selected returns the selected lines in cart order.
func Selected(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Selected {
			out = append(out, l)
		}
	}
	return out
}
