package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// OrderItem is one submitted line. Exactly one of the ids is set.
type OrderItem struct {
	Kind      enums.ItemKind `json:"kind"`
	ProductID *string        `json:"productId,omitempty"`
	VariantID *string        `json:"variantId,omitempty"`
	ComboID   *string        `json:"comboId,omitempty"`
	Quantity  int            `json:"quantity"`
}

// OrderDetail is a stored order as returned to its owner.
type OrderDetail struct {
	ID               uuid.UUID                    `json:"id"`
	Status           enums.OrderStatus            `json:"status"`
	AddressID        string                       `json:"addressId"`
	Message          *string                      `json:"message,omitempty"`
	Items            []OrderItem                  `json:"items"`
	StoreVouchers    []models.StoreVoucherCodes   `json:"storeVouchers"`
	PlatformVouchers []models.PlatformVoucherQty  `json:"platformVouchers"`
	ServiceTiers     map[string]enums.ServiceTier `json:"serviceTiers"`
	Totals           pricing.Totals               `json:"totals"`
	CreatedAt        time.Time                    `json:"createdAt"`
}

func orderFromSubmission(id uuid.UUID, sub checkout.Submission) *models.CheckoutOrder {
	p := sub.Payload
	order := &models.CheckoutOrder{
		ID:               id,
		UserID:           sub.UserID,
		AddressID:        p.AddressID,
		Message:          p.Message,
		Status:           enums.OrderStatusPending,
		Subtotal:         sub.Totals.Subtotal,
		PlatformDiscount: sub.Totals.PlatformDiscount,
		VoucherDiscount:  sub.Totals.VoucherDiscount,
		ShippingFee:      sub.Totals.ShippingFee,
		Total:            sub.Totals.Total,
		StoreVouchers:    make([]models.StoreVoucherCodes, 0, len(p.StoreVouchers)),
		PlatformVouchers: make([]models.PlatformVoucherQty, 0, len(p.PlatformVouchers)),
		ServiceTiers:     p.ServiceTiers,
		Items:            make([]models.CheckoutOrderItem, 0, len(p.Items)),
	}
	if sub.IdempotencyKey != "" {
		key := sub.IdempotencyKey
		order.IdempotencyKey = &key
	}
	for _, sv := range p.StoreVouchers {
		order.StoreVouchers = append(order.StoreVouchers, models.StoreVoucherCodes{StoreID: sv.StoreID, Codes: sv.Codes})
	}
	for _, pv := range p.PlatformVouchers {
		order.PlatformVouchers = append(order.PlatformVouchers, models.PlatformVoucherQty{PlatformVoucherID: pv.PlatformVoucherID, Quantity: pv.Quantity})
	}
	for _, it := range p.Items {
		row := models.CheckoutOrderItem{ID: uuid.New(), OrderID: id, Kind: enums.ItemKindProduct, Quantity: it.Quantity()}
		switch v := it.(type) {
		case checkout.ProductItem:
			row.ProductID = strPtr(v.ProductID)
		case checkout.VariantItem:
			row.VariantID = strPtr(v.VariantID)
		case checkout.ComboItem:
			row.Kind = enums.ItemKindCombo
			row.ComboID = strPtr(v.ComboID)
		}
		order.Items = append(order.Items, row)
	}
	return order
}

func detailFromModel(m *models.CheckoutOrder) *OrderDetail {
	out := &OrderDetail{
		ID:               m.ID,
		Status:           m.Status,
		AddressID:        m.AddressID,
		Message:          m.Message,
		Items:            make([]OrderItem, 0, len(m.Items)),
		StoreVouchers:    m.StoreVouchers,
		PlatformVouchers: m.PlatformVouchers,
		ServiceTiers:     m.ServiceTiers,
		Totals: pricing.Totals{
			Subtotal:         m.Subtotal,
			PlatformDiscount: m.PlatformDiscount,
			VoucherDiscount:  m.VoucherDiscount,
			ShippingFee:      m.ShippingFee,
			Total:            m.Total,
		},
		CreatedAt: m.CreatedAt,
	}
	for _, it := range m.Items {
		out.Items = append(out.Items, OrderItem{
			Kind:      it.Kind,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			ComboID:   it.ComboID,
			Quantity:  it.Quantity,
		})
	}
	return out
}

func strPtr(v string) *string { return &v }
