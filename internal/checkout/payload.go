package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Item is a payload line carrying exactly one identity.
type Item interface {
	Quantity() int
	item()
}

// ProductItem orders a base product.
type ProductItem struct {
	ProductID string
	Qty       int
}

// VariantItem orders a product variant. The base product id is kept for
// voucher lookups but never serialized.
type VariantItem struct {
	ProductID string
	VariantID string
	Qty       int
}

// ComboItem orders a combo.
type ComboItem struct {
	ComboID string
	Qty     int
}

func (i ProductItem) Quantity() int { return i.Qty }
func (i VariantItem) Quantity() int { return i.Qty }
func (i ComboItem) Quantity() int   { return i.Qty }

func (ProductItem) item() {}
func (VariantItem) item() {}
func (ComboItem) item()   {}

func (i ProductItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}{i.ProductID, i.Qty})
}

func (i VariantItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		VariantID string `json:"variantId"`
		Quantity  int    `json:"quantity"`
	}{i.VariantID, i.Qty})
}

func (i ComboItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ComboID  string `json:"comboId"`
		Quantity int    `json:"quantity"`
	}{i.ComboID, i.Qty})
}

// ItemFor derives the single identity a cart line is ordered by.
func ItemFor(l cart.Line) Item {
	switch l.Mode() {
	case cart.IdentityCombo:
		return ComboItem{ComboID: deref(l.ComboID), Qty: l.Quantity}
	case cart.IdentityVariant:
		return VariantItem{ProductID: l.ProductID, VariantID: deref(l.VariantID), Qty: l.Quantity}
	default:
		return ProductItem{ProductID: l.ProductID, Qty: l.Quantity}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StoreVouchers lists every voucher code applied within one store.
type StoreVouchers struct {
	StoreID string   `json:"storeId"`
	Codes   []string `json:"codes"`
}

// PlatformVoucher is a campaign voucher with the number of units it covers.
type PlatformVoucher struct {
	PlatformVoucherID string `json:"platformVoucherId"`
	Quantity          int    `json:"quantity"`
}

// Payload is the order submission body.
type Payload struct {
	Items            []Item                       `json:"items"`
	AddressID        string                       `json:"addressId"`
	Message          *string                      `json:"message,omitempty"`
	StoreVouchers    []StoreVouchers              `json:"storeVouchers"`
	PlatformVouchers []PlatformVoucher            `json:"platformVouchers"`
	ServiceTiers     map[string]enums.ServiceTier `json:"serviceTiers"`
}

// PayloadInput is the checkout state a payload is assembled from.
type PayloadInput struct {
	Lines     []cart.Line
	Platform  map[string]cart.PlatformVoucherInfo
	Bindings  pricing.Bindings
	Products  cart.ProductSource
	Vouchers  *vouchers.Snapshot
	AddressID string
	Message   *string
	Tiers     map[string]enums.ServiceTier
}

// PayloadBuilder assembles submission payloads, resolving campaign voucher
// references from the voucher catalog when the cart does not carry them.
type PayloadBuilder struct {
	vouchers vouchers.Catalog
	logg     *logger.Logger
	now      func() time.Time
}

func NewPayloadBuilder(catalog vouchers.Catalog, logg *logger.Logger, now func() time.Time) (*PayloadBuilder, error) {
	if catalog == nil {
		return nil, fmt.Errorf("voucher catalog required")
	}
	if now == nil {
		now = time.Now
	}
	return &PayloadBuilder{vouchers: catalog, logg: logg, now: now}, nil
}

// Build assembles the payload for the selected lines of in.
func (b *PayloadBuilder) Build(ctx context.Context, in PayloadInput) Payload {
	selected := cart.Selected(in.Lines)
	p := Payload{
		Items:            make([]Item, 0, len(selected)),
		AddressID:        in.AddressID,
		Message:          in.Message,
		StoreVouchers:    storeVouchers(in.Bindings, in.Products),
		PlatformVouchers: []PlatformVoucher{},
		ServiceTiers:     in.Tiers,
	}
	for _, l := range selected {
		p.Items = append(p.Items, ItemFor(l))
	}

	resolved := make(map[string]string)
	index := make(map[string]int)
	for _, l := range selected {
		info, ok := in.Platform[l.ProductID]
		if !ok || !info.Eligible() {
			continue
		}
		id, seen := resolved[l.ProductID]
		if !seen {
			id = b.resolveCampaignVoucher(ctx, l.ProductID, info, in.Vouchers)
			resolved[l.ProductID] = id
		}
		if id == "" {
			continue
		}
		if pos, ok := index[id]; ok {
			p.PlatformVouchers[pos].Quantity += l.Quantity
			continue
		}
		index[id] = len(p.PlatformVouchers)
		p.PlatformVouchers = append(p.PlatformVouchers, PlatformVoucher{PlatformVoucherID: id, Quantity: l.Quantity})
	}
	return p
}

// storeVouchers merges product-scoped and store-wide codes per store. A
// store can carry one of each.
func storeVouchers(b pricing.Bindings, products cart.ProductSource) []StoreVouchers {
	out := []StoreVouchers{}
	index := make(map[string]int)
	for _, a := range b.Sorted() {
		storeID := a.Key.ID
		if a.Key.Scope == enums.VoucherScopeProduct {
			id, ok := cart.StoreOf(products, a.Key.ID)
			if !ok {
				id = a.Voucher.StoreID
			}
			storeID = id
		}
		if pos, ok := index[storeID]; ok {
			out[pos].Codes = append(out[pos].Codes, a.Voucher.Code)
			continue
		}
		index[storeID] = len(out)
		out = append(out, StoreVouchers{StoreID: storeID, Codes: []string{a.Voucher.Code}})
	}
	return out
}

func (b *PayloadBuilder) resolveCampaignVoucher(ctx context.Context, productID string, info cart.PlatformVoucherInfo, snap *vouchers.Snapshot) string {
	if info.CampaignVoucherID != "" {
		return info.CampaignVoucherID
	}

	ctx = b.logg.WithField(ctx, "product_id", productID)
	pv, ok := snap.For(productID)
	if !ok {
		fetched, err := b.vouchers.GetForProduct(ctx, productID)
		if err != nil {
			b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "campaign voucher lookup failed")
			return ""
		}
		if fetched == nil {
			return ""
		}
		pv = *fetched
	}

	match, ok := pv.ResolveCampaignVoucher(b.now())
	if !ok {
		b.logg.Warn(ctx, "no campaign voucher found for campaign item")
		return ""
	}
	if match.Fallback {
		b.logg.Warn(b.logg.WithFields(ctx, map[string]any{
			"campaign_id":         match.CampaignID,
			"campaign_voucher_id": match.VoucherID,
		}), "no active campaign voucher, using first listed entry")
	}
	return match.VoucherID
}
