package models

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// CartLine persists one purchasable unit of a customer's cart, including the
// platform campaign pricing the cart service already applied.
type CartLine struct {
	ID                      string         `gorm:"column:id;type:text;primaryKey"`
	UserID                  string         `gorm:"column:user_id;type:text;not null;index:idx_cart_lines_user"`
	ProductID               string         `gorm:"column:product_id;type:text;not null"`
	VariantID               *string        `gorm:"column:variant_id;type:text"`
	ComboID                 *string        `gorm:"column:combo_id;type:text"`
	Kind                    enums.ItemKind `gorm:"column:kind;type:text;not null;default:'PRODUCT'"`
	Quantity                int            `gorm:"column:quantity;not null"`
	UnitPrice               int64          `gorm:"column:unit_price;not null"`
	OriginalUnitPrice       *int64         `gorm:"column:original_unit_price"`
	Selected                bool           `gorm:"column:selected;not null"`
	CampaignVoucherID       *string        `gorm:"column:campaign_voucher_id;type:text"`
	PlatformDiscountPerUnit int64          `gorm:"column:platform_discount_per_unit;not null;default:0"`
	InCampaign              bool           `gorm:"column:in_campaign;not null;default:false"`
	Position                int            `gorm:"column:position;not null;default:0"`
	CreatedAt               time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
