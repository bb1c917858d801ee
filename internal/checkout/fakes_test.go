package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

var testNow = time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func productLine(id, productID string, qty int, price int64) cart.Line {
	return cart.Line{ID: id, ProductID: productID, Quantity: qty, UnitPrice: price, Kind: enums.ItemKindProduct, Selected: true}
}

func scenarioLines() []cart.Line {
	return []cart.Line{
		productLine("l1", "p1", 1, 100000),
		productLine("l2", "p2", 1, 100000),
		productLine("l3", "p3", 1, 50000),
	}
}

func scenarioProducts() catalog.Snapshot {
	return catalog.NewSnapshot(
		catalog.Product{ID: "p1", StoreID: "s1", StoreName: "Store One", WeightKg: 1, OriginDistrictCode: "1442", OriginWardCode: "20109"},
		catalog.Product{ID: "p2", StoreID: "s1", StoreName: "Store One", WeightKg: 1, OriginDistrictCode: "1442", OriginWardCode: "20109"},
		catalog.Product{ID: "p3", StoreID: "s2", StoreName: "Store Two", WeightKg: 1, OriginDistrictCode: "1443", OriginWardCode: "20201"},
	)
}

func tenPercent() vouchers.Voucher {
	return vouchers.Voucher{
		Code:        "TEN",
		Kind:        enums.DiscountKindPercent,
		Percent:     decimal.NewFromInt(10),
		MaxDiscount: int64Ptr(15000),
		Scope:       enums.VoucherScopeProduct,
		StoreID:     "s1",
	}
}

var testDest = shipping.Destination{AddressID: "addr-1", DistrictID: 1542, WardCode: "21211"}

type fakeResolver struct {
	mu       sync.Mutex
	snapshot catalog.Snapshot
	calls    int
}

func (f *fakeResolver) EnsureLoaded(ctx context.Context, _ []string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeResolver) Snapshot() catalog.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

type fakeVoucherCatalog struct {
	mu      sync.Mutex
	entries map[string]vouchers.ProductVouchers
	calls   map[string]int
}

func newFakeVoucherCatalog(entries ...vouchers.ProductVouchers) *fakeVoucherCatalog {
	f := &fakeVoucherCatalog{entries: map[string]vouchers.ProductVouchers{}, calls: map[string]int{}}
	for _, e := range entries {
		f.entries[e.ProductID] = e
	}
	return f
}

func (f *fakeVoucherCatalog) GetForProduct(_ context.Context, productID string) (*vouchers.ProductVouchers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[productID]++
	pv, ok := f.entries[productID]
	if !ok {
		return &vouchers.ProductVouchers{ProductID: productID}, nil
	}
	return &pv, nil
}

type fakeQuoter struct {
	mu    sync.Mutex
	fees  map[string]int64
	fail  map[string]string
	calls int
	block chan struct{}
}

func (f *fakeQuoter) Quote(_ context.Context, groups []cart.StoreGroup, _ shipping.Destination, _ cart.ProductSource) shipping.Result {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	res := shipping.Result{Quotes: map[string]shipping.Quote{}}
	var sum int64
	for _, g := range groups {
		if len(g.SelectedLines()) == 0 {
			continue
		}
		q := shipping.Quote{StoreID: g.StoreID, StoreName: g.StoreName, Tier: enums.ServiceTierLight}
		if msg, ok := f.fail[g.StoreID]; ok {
			q.Err = &shipping.QuoteError{Kind: enums.QuoteErrorKindDestinationAddress, Message: msg}
			res.Messages = append(res.Messages, g.StoreName+": "+msg)
		} else {
			q.Fee = f.fees[g.StoreID]
			sum += q.Fee
		}
		res.Quotes[g.StoreID] = q
		res.Order = append(res.Order, g.StoreID)
	}
	if len(res.Messages) > 0 {
		res.Blocked = true
		return res
	}
	res.TotalFee = sum
	return res
}

type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (m *manualScheduler) Schedule(_ time.Duration, gen uint64, fn func(uint64)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, func() { fn(gen) })
	return func() {}
}

func (m *manualScheduler) fire() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

type fakeCart struct {
	mu       sync.Mutex
	lines    []cart.Line
	platform map[string]cart.PlatformVoucherInfo
	removed  []string
}

func (f *fakeCart) ListByUser(_ context.Context, _ string) (*cart.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &cart.Snapshot{Lines: append([]cart.Line(nil), f.lines...), Platform: f.platform}, nil
}

func (f *fakeCart) SetSelected(_ context.Context, _ string, ids []string, selected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	for i := range f.lines {
		if set[f.lines[i].ID] {
			f.lines[i].Selected = selected
		}
	}
	return nil
}

func (f *fakeCart) RemoveLines(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.lines[:0]
	for _, l := range f.lines {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	f.lines = kept
	f.removed = append(f.removed, ids...)
	return nil
}

type fakePending struct {
	mu      sync.Mutex
	records map[string]PendingRecord
	cleared []string
}

func newFakePending() *fakePending {
	return &fakePending{records: map[string]PendingRecord{}}
}

func (f *fakePending) Save(_ context.Context, rec PendingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.UserID] = rec
	return nil
}

func (f *fakePending) Load(_ context.Context, userID string) (*PendingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakePending) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, userID)
	f.cleared = append(f.cleared, userID)
	return nil
}

type fakeSubmitter struct {
	mu          sync.Mutex
	submissions []Submission
	err         error
}

func (f *fakeSubmitter) Submit(_ context.Context, sub Submission) (*SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.submissions = append(f.submissions, sub)
	return &SubmitResult{OrderID: "order-1", Status: enums.OrderStatusPending}, nil
}

var errSubmitFailed = pkgerrors.New(pkgerrors.CodeDependency, "order service down")
