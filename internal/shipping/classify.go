package shipping

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/carrier"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// destinationMarkers are matched against the lowercased carrier message with
// separators removed, so to_district_id and ToDistrictID both match while
// from_district_id does not.
var destinationMarkers = []string{"todistrict", "towardcode", "destination"}

var markerSeparators = strings.NewReplacer("_", "", "-", "", " ", "")

// QuoteError is a store's quote failure with its user-facing reason.
type QuoteError struct {
	Kind    enums.QuoteErrorKind
	Message string
}

func (e *QuoteError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newQuoteError(kind enums.QuoteErrorKind) *QuoteError {
	return &QuoteError{Kind: kind, Message: kind.DefaultMessage()}
}

// classifyCarrierError maps a failed carrier call onto a quote error. A 400
// that complains about the destination district becomes a destination address
// problem; anything else surfaces the carrier's own message when it has one.
func classifyCarrierError(err error) *QuoteError {
	apiErr, ok := carrier.AsAPIError(err)
	if !ok {
		return newQuoteError(enums.QuoteErrorKindCarrier)
	}
	if isDestinationProblem(apiErr) {
		return newQuoteError(enums.QuoteErrorKindDestinationAddress)
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" || len(msg) > 200 || strings.HasPrefix(msg, "<") {
		return newQuoteError(enums.QuoteErrorKindCarrier)
	}
	return &QuoteError{Kind: enums.QuoteErrorKindCarrier, Message: msg}
}

func isDestinationProblem(apiErr *carrier.APIError) bool {
	if apiErr.Code != http.StatusBadRequest {
		return false
	}
	text := markerSeparators.Replace(strings.ToLower(apiErr.Message))
	for _, marker := range destinationMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
