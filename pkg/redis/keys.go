package redis

import "strings"

// All keys live under the "sf" namespace, colon separated, with blank
// segments dropped.
const keyNamespace = "sf"

const (
	idempotencyPrefix = "idempotency"
	pendingPrefix     = "checkout_pending"
	catalogPrefix     = "catalog"
)

// IdempotencyKey returns the key holding a submit idempotency record.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

// PendingCheckoutKey returns the key holding a user's pending checkout record.
func (c *Client) PendingCheckoutKey(userID string) string {
	return key(pendingPrefix, userID)
}

// CatalogProductKey returns the key caching a catalog product lookup.
func (c *Client) CatalogProductKey(productID string) string {
	return key(catalogPrefix, "product", productID)
}

func key(segments ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			b.WriteByte(':')
			b.WriteString(s)
		}
	}
	return b.String()
}
