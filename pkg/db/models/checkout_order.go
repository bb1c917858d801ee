package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// CheckoutOrder records a submitted checkout payload and the totals shown to
// the customer at submission time.
type CheckoutOrder struct {
	ID               uuid.UUID                    `gorm:"column:id;type:text;primaryKey"`
	UserID           string                       `gorm:"column:user_id;type:text;not null;index:idx_checkout_orders_user"`
	IdempotencyKey   *string                      `gorm:"column:idempotency_key;type:text;uniqueIndex:idx_checkout_orders_idempotency"`
	AddressID        string                       `gorm:"column:address_id;type:text;not null"`
	Message          *string                      `gorm:"column:message;type:text"`
	Status           enums.OrderStatus            `gorm:"column:status;type:text;not null;default:'pending'"`
	Subtotal         int64                        `gorm:"column:subtotal;not null;default:0"`
	PlatformDiscount int64                        `gorm:"column:platform_discount;not null;default:0"`
	VoucherDiscount  int64                        `gorm:"column:voucher_discount;not null;default:0"`
	ShippingFee      int64                        `gorm:"column:shipping_fee;not null;default:0"`
	Total            int64                        `gorm:"column:total;not null;default:0"`
	StoreVouchers    []StoreVoucherCodes          `gorm:"column:store_vouchers;type:text;serializer:json"`
	PlatformVouchers []PlatformVoucherQty         `gorm:"column:platform_vouchers;type:text;serializer:json"`
	ServiceTiers     map[string]enums.ServiceTier `gorm:"column:service_tiers;type:text;serializer:json"`
	Items            []CheckoutOrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

// StoreVoucherCodes is the persisted per-store voucher list.
type StoreVoucherCodes struct {
	StoreID string   `json:"storeId"`
	Codes   []string `json:"codes"`
}

// PlatformVoucherQty is the persisted per-campaign-voucher quantity.
type PlatformVoucherQty struct {
	PlatformVoucherID string `json:"platformVoucherId"`
	Quantity          int    `json:"quantity"`
}

// CheckoutOrderItem is one submitted line with its resolved identity.
type CheckoutOrderItem struct {
	ID        uuid.UUID      `gorm:"column:id;type:text;primaryKey"`
	OrderID   uuid.UUID      `gorm:"column:order_id;type:text;not null;index"`
	Kind      enums.ItemKind `gorm:"column:kind;type:text;not null"`
	ProductID *string        `gorm:"column:product_id;type:text"`
	VariantID *string        `gorm:"column:variant_id;type:text"`
	ComboID   *string        `gorm:"column:combo_id;type:text"`
	Quantity  int            `gorm:"column:quantity;not null"`
}
