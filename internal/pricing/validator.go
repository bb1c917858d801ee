package pricing

import (
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// ValidationInput is the state one validation pass checks bindings against.
type ValidationInput struct {
	Vouchers *vouchers.Snapshot
	Products cart.ProductSource
	// CatalogComplete is true when store metadata is cached for every cart product.
	CatalogComplete bool
	Groups          []cart.StoreGroup
	Now             time.Time
}

// Revocation records a binding removed by validation with its user-facing message.
type Revocation struct {
	Code    string
	Key     ScopeKey
	Reason  enums.RevocationReason
	Message string
}

// Validate re-checks every binding and returns the surviving bindings with
// refreshed discounts plus every revocation of the pass. Bindings whose basis
// cannot be judged yet are left untouched.
func Validate(b Bindings, in ValidationInput) (Bindings, []Revocation) {
	if !in.Vouchers.Loaded() || b.Len() == 0 {
		return b, nil
	}

	groups := make(map[string]cart.StoreGroup, len(in.Groups))
	inCart := make(map[string]struct{})
	for _, g := range in.Groups {
		groups[g.StoreID] = g
		for _, l := range g.Lines {
			inCart[l.ProductID] = struct{}{}
		}
	}

	next := b
	var revoked []Revocation
	for _, applied := range b.Sorted() {
		storeID, ok := owningStore(applied.Key, in.Products)
		if !ok {
			continue
		}
		label := storeLabel(groups, storeID)
		code := applied.Voucher.Code

		if applied.Key.Scope == enums.VoucherScopeProduct {
			if _, ok := inCart[applied.Key.ID]; !ok {
				revoked = append(revoked, revoke(applied, enums.RevocationReasonProductRemoved,
					fmt.Sprintf("%s: voucher %s was removed because its product is no longer in the cart", label, code)))
				next = next.Remove(code)
				continue
			}
		}

		current, found := in.Vouchers.Find(code, applied.Key.Scope, storeID)
		if !found {
			revoked = append(revoked, revoke(applied, enums.RevocationReasonNotFound,
				fmt.Sprintf("%s: voucher %s is no longer valid", label, code)))
			next = next.Remove(code)
			continue
		}
		if !current.ActiveAt(in.Now) {
			revoked = append(revoked, revoke(applied, enums.RevocationReasonExpired,
				fmt.Sprintf("%s: voucher %s has expired", label, code)))
			next = next.Remove(code)
			continue
		}

		subtotal := groups[storeID].SelectedSubtotal
		if subtotal == 0 {
			if !in.CatalogComplete {
				continue
			}
			revoked = append(revoked, revoke(applied, enums.RevocationReasonEmptyBasis,
				fmt.Sprintf("%s: voucher %s was removed because no items from this store are selected", label, code)))
			next = next.Remove(code)
			continue
		}
		if current.MinOrderValue != nil && *current.MinOrderValue > subtotal {
			revoked = append(revoked, revoke(applied, enums.RevocationReasonMinOrder,
				fmt.Sprintf("%s: voucher %s requires a minimum order of %d but the store subtotal is %d",
					label, code, *current.MinOrderValue, subtotal)))
			next = next.Remove(code)
			continue
		}

		refreshed, err := next.Apply(applied.Key, current, VoucherDiscount(current, subtotal))
		if err != nil {
			continue
		}
		next = refreshed
	}
	return next, revoked
}

func owningStore(key ScopeKey, products cart.ProductSource) (string, bool) {
	if key.Scope == enums.VoucherScopeStoreWide {
		return key.ID, key.ID != ""
	}
	return cart.StoreOf(products, key.ID)
}

func storeLabel(groups map[string]cart.StoreGroup, storeID string) string {
	if g, ok := groups[storeID]; ok && g.StoreName != "" {
		return g.StoreName
	}
	return storeID
}

func revoke(a AppliedVoucher, reason enums.RevocationReason, msg string) Revocation {
	return Revocation{Code: a.Voucher.Code, Key: a.Key, Reason: reason, Message: msg}
}
