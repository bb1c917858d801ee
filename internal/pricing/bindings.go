package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// ScopeKey identifies what an applied voucher is bound to: a product id for
// product-scoped vouchers, a store id for store-wide vouchers.
type ScopeKey struct {
	Scope enums.VoucherScope
	ID    string
}

func ProductKey(productID string) ScopeKey {
	return ScopeKey{Scope: enums.VoucherScopeProduct, ID: productID}
}

func StoreKey(storeID string) ScopeKey {
	return ScopeKey{Scope: enums.VoucherScopeStoreWide, ID: storeID}
}

func (k ScopeKey) String() string {
	if k.Scope == enums.VoucherScopeStoreWide {
		return "store " + k.ID
	}
	return "product " + k.ID
}

// AppliedVoucher binds a voucher to a scope key together with the discount
// computed the last time the binding was validated.
type AppliedVoucher struct {
	Key      ScopeKey
	Voucher  vouchers.Voucher
	Discount int64
}

// Bindings is the immutable set of applied vouchers. Each scope key holds at
// most one voucher and each code is held by at most one scope key.
type Bindings struct {
	byKey  map[ScopeKey]AppliedVoucher
	byCode map[string]ScopeKey
}

// NewBindings builds a binding set, rejecting duplicate codes.
func NewBindings(applied ...AppliedVoucher) (Bindings, error) {
	b := Bindings{}
	for _, a := range applied {
		next, err := b.Apply(a.Key, a.Voucher, a.Discount)
		if err != nil {
			return Bindings{}, err
		}
		b = next
	}
	return b, nil
}

// Apply binds v to key. A code held by a different key is rejected with a
// conflict naming the holder and the receiver is left unchanged; applying to
// a key that already holds another voucher replaces it.
func (b Bindings) Apply(key ScopeKey, v vouchers.Voucher, discount int64) (Bindings, error) {
	code := strings.TrimSpace(v.Code)
	if code == "" {
		return b, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required")
	}
	if strings.TrimSpace(key.ID) == "" {
		return b, pkgerrors.New(pkgerrors.CodeValidation, "voucher target is required")
	}
	if v.Scope != key.Scope {
		return b, pkgerrors.Newf(pkgerrors.CodeValidation, "voucher %s cannot be applied to %s", code, key)
	}
	if holder, ok := b.byCode[code]; ok && holder != key {
		return b, pkgerrors.Newf(pkgerrors.CodeConflict, "voucher %s is already applied to %s", code, holder).
			WithDetails(map[string]any{
				"code":          code,
				"held_by":       holder.ID,
				"held_by_scope": holder.Scope.String(),
			})
	}

	next := b.clone()
	if prev, ok := next.byKey[key]; ok {
		delete(next.byCode, strings.TrimSpace(prev.Voucher.Code))
	}
	next.byKey[key] = AppliedVoucher{Key: key, Voucher: v, Discount: discount}
	next.byCode[code] = key
	return next, nil
}

// Remove unbinds code, freeing it for another scope key. Codes are matched
// with surrounding whitespace trimmed.
func (b Bindings) Remove(code string) Bindings {
	code = strings.TrimSpace(code)
	key, ok := b.byCode[code]
	if !ok {
		return b
	}
	next := b.clone()
	delete(next.byCode, code)
	delete(next.byKey, key)
	return next
}

// Get returns the voucher bound to key.
func (b Bindings) Get(key ScopeKey) (AppliedVoucher, bool) {
	a, ok := b.byKey[key]
	return a, ok
}

// HolderOf returns the scope key holding code.
func (b Bindings) HolderOf(code string) (ScopeKey, bool) {
	k, ok := b.byCode[strings.TrimSpace(code)]
	return k, ok
}

func (b Bindings) Len() int {
	return len(b.byKey)
}

// Sorted lists bindings product-scoped first, then by scope id.
func (b Bindings) Sorted() []AppliedVoucher {
	out := make([]AppliedVoucher, 0, len(b.byKey))
	for _, a := range b.byKey {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Scope != out[j].Key.Scope {
			return out[i].Key.Scope == enums.VoucherScopeProduct
		}
		return out[i].Key.ID < out[j].Key.ID
	})
	return out
}

// TotalDiscount sums the discount of every binding.
func (b Bindings) TotalDiscount() int64 {
	var total int64
	for _, a := range b.byKey {
		total += a.Discount
	}
	return total
}

func (b Bindings) clone() Bindings {
	next := Bindings{
		byKey:  make(map[ScopeKey]AppliedVoucher, len(b.byKey)+1),
		byCode: make(map[string]ScopeKey, len(b.byCode)+1),
	}
	for k, v := range b.byKey {
		next.byKey[k] = v
	}
	for k, v := range b.byCode {
		next.byCode[k] = v
	}
	return next
}

func (a AppliedVoucher) String() string {
	return fmt.Sprintf("%s@%s", a.Voucher.Code, a.Key)
}
