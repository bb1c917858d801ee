package enums

import "fmt"

// RevocationReason explains why an applied voucher was removed by validation.
type RevocationReason string

const (
	RevocationReasonNotFound       RevocationReason = "not_found"
	RevocationReasonExpired        RevocationReason = "expired"
	RevocationReasonEmptyBasis     RevocationReason = "empty_basis"
	RevocationReasonMinOrder       RevocationReason = "min_order"
	RevocationReasonProductRemoved RevocationReason = "product_removed"
)

var validRevocationReasons = []RevocationReason{
	RevocationReasonNotFound,
	RevocationReasonExpired,
	RevocationReasonEmptyBasis,
	RevocationReasonMinOrder,
	RevocationReasonProductRemoved,
}

// String implements fmt.Stringer.
func (r RevocationReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RevocationReason.
func (r RevocationReason) IsValid() bool {
	for _, candidate := range validRevocationReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRevocationReason converts raw input into a RevocationReason.
func ParseRevocationReason(value string) (RevocationReason, error) {
	for _, candidate := range validRevocationReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revocation reason %q", value)
}
