package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// PendingRecord bridges the cart selection to the checkout flow. It is
// cleared as soon as an order is submitted.
type PendingRecord struct {
	UserID          string            `json:"userId"`
	LineIDs         []string          `json:"lineIds"`
	ProductVouchers map[string]string `json:"productVouchers,omitempty"`
	StoreVouchers   map[string]string `json:"storeVouchers,omitempty"`
	AddressID       string            `json:"addressId"`
	DistrictID      int               `json:"districtId"`
	WardCode        string            `json:"wardCode"`
	CreatedAt       time.Time         `json:"createdAt"`
}

type pendingKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PendingCheckoutKey(userID string) string
}

// PendingStore keeps one pending checkout record per user in redis.
type PendingStore struct {
	kv  pendingKV
	ttl time.Duration
}

func NewPendingStore(kv pendingKV, ttl time.Duration) (*PendingStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &PendingStore{kv: kv, ttl: ttl}, nil
}

// Save replaces the user's pending record.
func (p *PendingStore) Save(ctx context.Context, rec PendingRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode pending checkout")
	}
	if err := p.kv.Set(ctx, p.kv.PendingCheckoutKey(rec.UserID), payload, p.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store pending checkout")
	}
	return nil
}

// Load returns the user's pending record, or nil when there is none.
func (p *PendingStore) Load(ctx context.Context, userID string) (*PendingRecord, error) {
	raw, err := p.kv.Get(ctx, p.kv.PendingCheckoutKey(userID))
	if pkgredis.IsMiss(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending checkout")
	}
	var rec PendingRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode pending checkout")
	}
	return &rec, nil
}

// Clear removes the user's pending record.
func (p *PendingStore) Clear(ctx context.Context, userID string) error {
	if err := p.kv.Del(ctx, p.kv.PendingCheckoutKey(userID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear pending checkout")
	}
	return nil
}
