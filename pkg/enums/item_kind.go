package enums

import "fmt"

// ItemKind distinguishes plain product lines from combo bundles.
type ItemKind string

const (
	ItemKindProduct ItemKind = "PRODUCT"
	ItemKindCombo   ItemKind = "COMBO"
)

var validItemKinds = []ItemKind{
	ItemKindProduct,
	ItemKindCombo,
}

// String implements fmt.Stringer.
func (i ItemKind) String() string {
	return string(i)
}

// IsValid reports whether the value is a known ItemKind.
func (i ItemKind) IsValid() bool {
	for _, candidate := range validItemKinds {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseItemKind converts raw input into a ItemKind.
func ParseItemKind(value string) (ItemKind, error) {
	for _, candidate := range validItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item kind %q", value)
}
