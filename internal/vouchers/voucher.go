package vouchers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Voucher is a shop voucher descriptor from the voucher catalog. Amounts are
// minor currency units.
type Voucher struct {
	Code          string             `json:"code"`
	Kind          enums.DiscountKind `json:"kind"`
	Value         int64              `json:"value"`
	Percent       decimal.Decimal    `json:"percent"`
	MaxDiscount   *int64             `json:"maxDiscount,omitempty"`
	MinOrderValue *int64             `json:"minOrderValue,omitempty"`
	StartsAt      time.Time          `json:"startsAt"`
	EndsAt        time.Time          `json:"endsAt"`
	Scope         enums.VoucherScope `json:"scope"`
	StoreID       string             `json:"storeId"`
}

// ActiveAt reports whether now falls inside the validity window. Zero bounds
// are open.
func (v Voucher) ActiveAt(now time.Time) bool {
	return withinWindow(now, v.StartsAt, v.EndsAt)
}

// ProductVouchers is everything the voucher catalog knows for one product.
type ProductVouchers struct {
	ProductID         string     `json:"productId"`
	ShopVouchers      []Voucher  `json:"shopVouchers"`
	PlatformCampaigns []Campaign `json:"platformCampaigns"`
}

// ShopVoucher returns the shop voucher with the given code.
func (p ProductVouchers) ShopVoucher(code string) (Voucher, bool) {
	for _, v := range p.ShopVouchers {
		if v.Code == code {
			return v, true
		}
	}
	return Voucher{}, false
}

// Catalog resolves vouchers and campaigns for a product.
type Catalog interface {
	GetForProduct(ctx context.Context, productID string) (*ProductVouchers, error)
}

func withinWindow(now, start, end time.Time) bool {
	if !start.IsZero() && now.Before(start) {
		return false
	}
	if !end.IsZero() && now.After(end) {
		return false
	}
	return true
}
