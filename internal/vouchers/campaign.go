package vouchers

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Campaign is a platform campaign whose discount the cart service already
// baked into unit prices.
type Campaign struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Status    enums.CampaignStatus `json:"status"`
	StartsAt  time.Time            `json:"startsAt"`
	EndsAt    time.Time            `json:"endsAt"`
	FlashSale *FlashSaleSlot       `json:"flashSale,omitempty"`
	Vouchers  []CampaignVoucher    `json:"vouchers"`
}

// FlashSaleSlot gates flash-sale campaigns on an additional open/close window.
type FlashSaleSlot struct {
	OpensAt  time.Time            `json:"opensAt"`
	ClosesAt time.Time            `json:"closesAt"`
	Status   enums.CampaignStatus `json:"status"`
}

// CampaignVoucher is one redeemable entry of a campaign.
type CampaignVoucher struct {
	ID              string               `json:"id"`
	Status          enums.CampaignStatus `json:"status"`
	StartsAt        time.Time            `json:"startsAt"`
	EndsAt          time.Time            `json:"endsAt"`
	DiscountPerUnit int64                `json:"discountPerUnit"`
}

// IsActive requires the status flag and the time window; flash sales also
// need an open slot.
func (c Campaign) IsActive(now time.Time) bool {
	if c.Status != enums.CampaignStatusActive || !withinWindow(now, c.StartsAt, c.EndsAt) {
		return false
	}
	if c.FlashSale != nil {
		slot := c.FlashSale
		if slot.Status != enums.CampaignStatusActive || !withinWindow(now, slot.OpensAt, slot.ClosesAt) {
			return false
		}
	}
	return true
}

func (v CampaignVoucher) IsActive(now time.Time) bool {
	return v.Status == enums.CampaignStatusActive && withinWindow(now, v.StartsAt, v.EndsAt)
}

// CampaignVoucherMatch is the outcome of resolving a product's campaign voucher.
type CampaignVoucherMatch struct {
	CampaignID string
	VoucherID  string
	// Fallback is set when no entry was active and the first listed entry was used.
	Fallback bool
}

// ResolveCampaignVoucher picks the first active voucher of an active campaign.
// When none is active it falls back to the first voucher entry listed for the
// product's first campaign that has one, so items already marked as campaign
// eligible keep their reference across catalog reloads.
func (p ProductVouchers) ResolveCampaignVoucher(now time.Time) (CampaignVoucherMatch, bool) {
	for _, c := range p.PlatformCampaigns {
		if !c.IsActive(now) {
			continue
		}
		for _, v := range c.Vouchers {
			if v.IsActive(now) {
				return CampaignVoucherMatch{CampaignID: c.ID, VoucherID: v.ID}, true
			}
		}
	}
	for _, c := range p.PlatformCampaigns {
		if len(c.Vouchers) > 0 {
			return CampaignVoucherMatch{CampaignID: c.ID, VoucherID: c.Vouchers[0].ID, Fallback: true}, true
		}
	}
	return CampaignVoucherMatch{}, false
}
