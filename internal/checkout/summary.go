package checkout

import (
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Summary is the priced checkout view returned to callers.
type Summary struct {
	Stores         []StoreSummary       `json:"stores"`
	Vouchers       []AppliedVoucherView `json:"vouchers"`
	Totals         pricing.Totals       `json:"totals"`
	Blocked        bool                 `json:"blocked"`
	BlockReason    string               `json:"blockReason,omitempty"`
	ShippingErrors []string             `json:"shippingErrors,omitempty"`
	Notices        []string             `json:"notices,omitempty"`
}

// StoreSummary is one store group with its shipping outcome.
type StoreSummary struct {
	StoreID     string            `json:"storeId"`
	StoreName   string            `json:"storeName,omitempty"`
	LineIDs     []string          `json:"lineIds"`
	Subtotal    int64             `json:"subtotal"`
	ShippingFee *int64            `json:"shippingFee,omitempty"`
	Tier        enums.ServiceTier `json:"serviceTier,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// AppliedVoucherView is an applied voucher as shown to the customer.
type AppliedVoucherView struct {
	Code     string             `json:"code"`
	Scope    enums.VoucherScope `json:"scope"`
	TargetID string             `json:"targetId"`
	Discount int64              `json:"discount"`
}

func summarize(st State, notices []string) *Summary {
	out := &Summary{
		Stores:   make([]StoreSummary, 0, len(st.Groups)),
		Vouchers: make([]AppliedVoucherView, 0, st.Bindings.Len()),
		Totals:   st.Totals(),
		Notices:  notices,
	}
	for _, g := range st.Groups {
		s := StoreSummary{
			StoreID:   g.StoreID,
			StoreName: g.StoreName,
			LineIDs:   make([]string, 0, len(g.Lines)),
			Subtotal:  g.SelectedSubtotal,
		}
		for _, l := range g.Lines {
			s.LineIDs = append(s.LineIDs, l.ID)
		}
		if st.Shipping != nil {
			if q, ok := st.Shipping.Quotes[g.StoreID]; ok {
				s.Tier = q.Tier
				if q.Failed() {
					s.Error = q.Err.Message
				} else {
					fee := q.Fee
					s.ShippingFee = &fee
				}
			}
		}
		out.Stores = append(out.Stores, s)
	}
	for _, a := range st.Bindings.Sorted() {
		out.Vouchers = append(out.Vouchers, AppliedVoucherView{
			Code:     a.Voucher.Code,
			Scope:    a.Key.Scope,
			TargetID: a.Key.ID,
			Discount: a.Discount,
		})
	}
	if reason := st.BlockReason(); reason != "" {
		out.Blocked = true
		out.BlockReason = reason
	}
	if st.Shipping != nil {
		out.ShippingErrors = st.Shipping.Messages
	}
	return out
}
