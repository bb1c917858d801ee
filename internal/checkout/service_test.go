package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type serviceFixture struct {
	svc       Service
	cart      *fakeCart
	quoter    *fakeQuoter
	pending   *fakePending
	submitter *fakeSubmitter
	vouchers  *fakeVoucherCatalog
}

func newServiceFixture(t *testing.T, pending *fakePending) *serviceFixture {
	t.Helper()
	if pending == nil {
		pending = newFakePending()
	}
	f := &serviceFixture{
		cart:      &fakeCart{lines: scenarioLines()},
		quoter:    &fakeQuoter{fees: map[string]int64{"s1": 20000, "s2": 15000}},
		pending:   pending,
		submitter: &fakeSubmitter{},
		vouchers: newFakeVoucherCatalog(
			vouchers.ProductVouchers{ProductID: "p1", ShopVouchers: []vouchers.Voucher{tenPercent()}},
		),
	}
	svc, err := NewService(ServiceParams{
		Cart:      f.cart,
		Catalog:   &fakeResolver{snapshot: scenarioProducts()},
		Vouchers:  f.vouchers,
		Quoter:    f.quoter,
		Submitter: f.submitter,
		Pending:   f.pending,
		Debounce:  500 * time.Millisecond,
		Scheduler: &manualScheduler{},
		Clock:     fixedClock,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	f.svc = svc
	return f
}

func allLines() []string { return []string{"l1", "l2", "l3"} }

func TestServiceTotalsWithoutVouchers(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)

	sum, err := f.svc.SavePending(context.Background(), "u1", PendingRequest{LineIDs: allLines(), Address: testDest})
	require.NoError(t, err)

	assert.Equal(t, pricing.Totals{Subtotal: 250000, ShippingFee: 35000, Total: 285000}, sum.Totals)
	assert.False(t, sum.Blocked)
	require.Len(t, sum.Stores, 2)
	require.NotNil(t, sum.Stores[0].ShippingFee)
	assert.Equal(t, int64(20000), *sum.Stores[0].ShippingFee)

	rec, err := f.pending.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, allLines(), rec.LineIDs)
	assert.Equal(t, testNow, rec.CreatedAt)
}

func TestServicePercentVoucher(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)

	sum, err := f.svc.SavePending(context.Background(), "u1", PendingRequest{
		LineIDs:         allLines(),
		Address:         testDest,
		ProductVouchers: map[string]string{"p1": "TEN"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), sum.Totals.VoucherDiscount)
	assert.Equal(t, int64(270000), sum.Totals.Total)
	require.Len(t, sum.Vouchers, 1)
	assert.Equal(t, "p1", sum.Vouchers[0].TargetID)

	rec, _ := f.pending.Load(context.Background(), "u1")
	assert.Equal(t, "TEN", rec.ProductVouchers["p1"])
}

func TestServiceBlocksSubmitOnShippingError(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)
	f.quoter.fail = map[string]string{"s2": "destination address problem"}

	sum, err := f.svc.SavePending(context.Background(), "u1", PendingRequest{LineIDs: allLines(), Address: testDest})
	require.NoError(t, err)
	assert.True(t, sum.Blocked)
	assert.Equal(t, int64(0), sum.Totals.ShippingFee)
	assert.Equal(t, int64(250000), sum.Totals.Total)
	require.Len(t, sum.ShippingErrors, 1)
	assert.True(t, strings.HasPrefix(sum.ShippingErrors[0], "Store Two:"))

	_, err = f.svc.Submit(context.Background(), "u1", SubmitRequest{IdempotencyKey: "k1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.submitter.submissions)
}

func TestServiceSubmitClearsPendingAndCart(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.SavePending(ctx, "u1", PendingRequest{
		LineIDs:         []string{"l1", "l3"},
		Address:         testDest,
		ProductVouchers: map[string]string{"p1": "TEN"},
	})
	require.NoError(t, err)

	msg := "leave at the door"
	res, err := f.svc.Submit(ctx, "u1", SubmitRequest{IdempotencyKey: "k1", Message: &msg})
	require.NoError(t, err)
	assert.Equal(t, "order-1", res.OrderID)

	require.Len(t, f.submitter.submissions, 1)
	sub := f.submitter.submissions[0]
	assert.Equal(t, "k1", sub.IdempotencyKey)
	assert.Equal(t, []string{"l1", "l3"}, sub.LineIDs)
	assert.Len(t, sub.Payload.Items, 2)
	assert.Equal(t, "addr-1", sub.Payload.AddressID)
	assert.Equal(t, []StoreVouchers{{StoreID: "s1", Codes: []string{"TEN"}}}, sub.Payload.StoreVouchers)
	assert.Equal(t, enums.ServiceTierLight, sub.Payload.ServiceTiers["s1"])
	assert.Equal(t, int64(10000), sub.Totals.VoucherDiscount)

	assert.Equal(t, []string{"u1"}, f.pending.cleared)
	assert.Equal(t, []string{"l1", "l3"}, f.cart.removed)

	sum, err := f.svc.Summary(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sum.Stores, 1)
	assert.Equal(t, []string{"l2"}, sum.Stores[0].LineIDs)
}

func TestServiceSubmitFailureKeepsState(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.SavePending(ctx, "u1", PendingRequest{LineIDs: allLines(), Address: testDest})
	require.NoError(t, err)

	f.submitter.err = errSubmitFailed
	_, err = f.svc.Submit(ctx, "u1", SubmitRequest{IdempotencyKey: "k1"})
	require.ErrorIs(t, err, errSubmitFailed)
	assert.Empty(t, f.pending.cleared)
	assert.Empty(t, f.cart.removed)
}

func TestServiceRejectsUnknownLines(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)

	_, err := f.svc.SavePending(context.Background(), "u1", PendingRequest{LineIDs: []string{"l1", "ghost"}, Address: testDest})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "ghost")
}

func TestServiceVoucherConflictAndRemoval(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)
	f.vouchers.entries["p2"] = vouchers.ProductVouchers{ProductID: "p2", ShopVouchers: []vouchers.Voucher{tenPercent()}}
	ctx := context.Background()

	_, err := f.svc.SavePending(ctx, "u1", PendingRequest{LineIDs: allLines(), Address: testDest, ProductVouchers: map[string]string{"p1": "TEN"}})
	require.NoError(t, err)

	_, err = f.svc.ApplyVoucher(ctx, "u1", pricing.ProductKey("p2"), "TEN")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	sum, err := f.svc.RemoveVoucher(ctx, "u1", "TEN")
	require.NoError(t, err)
	assert.Empty(t, sum.Vouchers)

	sum, err = f.svc.ApplyVoucher(ctx, "u1", pricing.ProductKey("p2"), "TEN")
	require.NoError(t, err)
	require.Len(t, sum.Vouchers, 1)
	assert.Equal(t, "p2", sum.Vouchers[0].TargetID)

	rec, _ := f.pending.Load(ctx, "u1")
	assert.Equal(t, map[string]string{"p2": "TEN"}, rec.ProductVouchers)

	_, err = f.svc.RemoveVoucher(ctx, "u1", "NOPE")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestServiceRestoresPendingRecord(t *testing.T) {
	t.Parallel()
	pending := newFakePending()
	require.NoError(t, pending.Save(context.Background(), PendingRecord{
		UserID:          "u1",
		LineIDs:         allLines(),
		ProductVouchers: map[string]string{"p1": "TEN"},
		AddressID:       testDest.AddressID,
		DistrictID:      testDest.DistrictID,
		WardCode:        testDest.WardCode,
		CreatedAt:       testNow,
	}))
	f := newServiceFixture(t, pending)

	sum, err := f.svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, sum.Blocked)
	assert.Equal(t, int64(270000), sum.Totals.Total)
}

func TestServiceRequiresUser(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, nil)
	_, err := f.svc.Summary(context.Background(), " ")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestSessionDiscardsSupersededQuote(t *testing.T) {
	t.Parallel()

	sched := &manualScheduler{}
	q := &fakeQuoter{fees: map[string]int64{"s1": 1, "s2": 1}, block: make(chan struct{})}
	sess := newSession("u1", sessionDeps{
		catalog:  &fakeResolver{snapshot: scenarioProducts()},
		vouchers: newFakeVoucherCatalog(),
		quoter:   q,
		now:      fixedClock,
	}, sched, 500*time.Millisecond)
	t.Cleanup(sess.Close)
	ctx := context.Background()

	require.NoError(t, sess.SetCart(ctx, scenarioLines(), nil))
	require.NoError(t, sess.SelectAddress(ctx, testDest))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.fire()
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.calls == 1
	}, time.Second, 5*time.Millisecond)

	blocked := q.block
	q.mu.Lock()
	q.block = nil
	q.fees = map[string]int64{"s1": 20000, "s2": 15000}
	q.mu.Unlock()

	moved := shipping.Destination{AddressID: "addr-2", DistrictID: 1543, WardCode: "21212"}
	require.NoError(t, sess.SelectAddress(ctx, moved))
	sess.Flush(ctx)
	close(blocked)
	<-done

	st := sess.State()
	require.NotNil(t, st.Shipping)
	assert.Equal(t, int64(35000), st.Shipping.TotalFee)
	assert.Equal(t, uint64(2), st.QuoteGeneration)
	assert.Equal(t, uint64(1), st.StaleQuotesDropped)
	assert.False(t, st.QuoteInFlight)
}

func TestSessionFlushJoinsInFlightQuote(t *testing.T) {
	t.Parallel()

	sched := &manualScheduler{}
	q := &fakeQuoter{fees: map[string]int64{"s1": 20000, "s2": 15000}, block: make(chan struct{})}
	sess := newSession("u1", sessionDeps{
		catalog:  &fakeResolver{snapshot: scenarioProducts()},
		vouchers: newFakeVoucherCatalog(),
		quoter:   q,
		now:      fixedClock,
	}, sched, 500*time.Millisecond)
	t.Cleanup(sess.Close)
	ctx := context.Background()

	require.NoError(t, sess.SetCart(ctx, scenarioLines(), nil))
	require.NoError(t, sess.SelectAddress(ctx, testDest))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.fire()
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.calls == 1
	}, time.Second, 5*time.Millisecond)

	sess.Flush(ctx)
	sess.Flush(ctx)
	q.mu.Lock()
	calls := q.calls
	q.mu.Unlock()
	assert.Equal(t, 1, calls, "unchanged state must not start another carrier call")

	close(q.block)
	<-done

	st := sess.State()
	require.NotNil(t, st.Shipping)
	assert.Equal(t, int64(35000), st.Shipping.TotalFee)
	assert.Equal(t, uint64(1), st.QuoteGeneration)
	assert.Zero(t, st.StaleQuotesDropped)
}

func TestSessionDebouncesTriggers(t *testing.T) {
	t.Parallel()

	sched := &manualScheduler{}
	q := &fakeQuoter{fees: map[string]int64{"s1": 20000, "s2": 15000}}
	sess := newSession("u1", sessionDeps{
		catalog:  &fakeResolver{snapshot: scenarioProducts()},
		vouchers: newFakeVoucherCatalog(),
		quoter:   q,
		now:      fixedClock,
	}, sched, 500*time.Millisecond)
	t.Cleanup(sess.Close)
	ctx := context.Background()

	require.NoError(t, sess.SelectAddress(ctx, testDest))
	require.NoError(t, sess.SetCart(ctx, scenarioLines(), nil))
	lines := scenarioLines()
	lines[2].Selected = false
	require.NoError(t, sess.SetCart(ctx, lines, nil))
	assert.Equal(t, 0, q.calls)

	sched.fire()
	assert.Equal(t, 1, q.calls)
	st := sess.State()
	require.NotNil(t, st.Shipping)
	assert.Equal(t, int64(20000), st.Shipping.TotalFee)
	assert.Equal(t, []cart.Line{lines[0], lines[1]}, st.SelectedLines())
}
