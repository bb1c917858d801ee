package enums

import "fmt"

// ServiceTier is the carrier service classification derived from package weight.
type ServiceTier string

const (
	ServiceTierLight ServiceTier = "LIGHT"
	ServiceTierHeavy ServiceTier = "HEAVY"
)

var validServiceTiers = []ServiceTier{
	ServiceTierLight,
	ServiceTierHeavy,
}

// String implements fmt.Stringer.
func (s ServiceTier) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ServiceTier.
func (s ServiceTier) IsValid() bool {
	for _, candidate := range validServiceTiers {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseServiceTier converts raw input into a ServiceTier.
func ParseServiceTier(value string) (ServiceTier, error) {
	for _, candidate := range validServiceTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service tier %q", value)
}

// CarrierServiceTypeID returns the carrier wire identifier for the tier.
func (s ServiceTier) CarrierServiceTypeID() int {
	if s == ServiceTierHeavy {
		return 5
	}
	return 2
}
