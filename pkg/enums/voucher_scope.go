package enums

import "fmt"

// VoucherScope identifies what a shop voucher is bound to.
type VoucherScope string

const (
	VoucherScopeProduct   VoucherScope = "PRODUCT"
	VoucherScopeStoreWide VoucherScope = "STORE_WIDE"
)

var validVoucherScopes = []VoucherScope{
	VoucherScopeProduct,
	VoucherScopeStoreWide,
}

// String implements fmt.Stringer.
func (v VoucherScope) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoucherScope.
func (v VoucherScope) IsValid() bool {
	for _, candidate := range validVoucherScopes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherScope converts raw input into a VoucherScope.
func ParseVoucherScope(value string) (VoucherScope, error) {
	for _, candidate := range validVoucherScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher scope %q", value)
}
