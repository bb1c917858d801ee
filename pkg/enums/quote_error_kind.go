package enums

import "fmt"

// QuoteErrorKind classifies why a store's shipping quote failed.
type QuoteErrorKind string

const (
	QuoteErrorKindMissingOrigin      QuoteErrorKind = "missing_origin"
	QuoteErrorKindDestinationAddress QuoteErrorKind = "destination_address"
	QuoteErrorKindCarrier            QuoteErrorKind = "carrier"
	QuoteErrorKindFeeMissing         QuoteErrorKind = "fee_missing"
)

var validQuoteErrorKinds = []QuoteErrorKind{
	QuoteErrorKindMissingOrigin,
	QuoteErrorKindDestinationAddress,
	QuoteErrorKindCarrier,
	QuoteErrorKindFeeMissing,
}

// String implements fmt.Stringer.
func (q QuoteErrorKind) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuoteErrorKind.
func (q QuoteErrorKind) IsValid() bool {
	for _, candidate := range validQuoteErrorKinds {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuoteErrorKind converts raw input into a QuoteErrorKind.
func ParseQuoteErrorKind(value string) (QuoteErrorKind, error) {
	for _, candidate := range validQuoteErrorKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote error kind %q", value)
}

// DefaultMessage returns the user-facing reason used when no carrier text is available.
func (q QuoteErrorKind) DefaultMessage() string {
	switch q {
	case QuoteErrorKindMissingOrigin:
		return "missing origin address"
	case QuoteErrorKindDestinationAddress:
		return "destination address problem: please re-select the district and ward"
	case QuoteErrorKindFeeMissing:
		return "fee missing in response"
	default:
		return "failed to compute shipping fee"
	}
}
