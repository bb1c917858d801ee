package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

type catalogResolver interface {
	EnsureLoaded(ctx context.Context, productIDs []string) error
	Snapshot() catalog.Snapshot
}

type quoter interface {
	Quote(ctx context.Context, groups []cart.StoreGroup, dest shipping.Destination, products cart.ProductSource) shipping.Result
}

type sessionDeps struct {
	catalog  catalogResolver
	vouchers vouchers.Catalog
	quoter   quoter
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// Session drives one user's checkout state. Events are reduced under a lock;
// catalog resolution and carrier quoting run outside it.
type Session struct {
	userID    string
	deps      sessionDeps
	debouncer *shipping.Debouncer

	mu         sync.Mutex
	state      State
	notices    []string
	loadSeq    uint64
	loadCancel context.CancelFunc
}

func newSession(userID string, deps sessionDeps, sched shipping.Scheduler, debounce time.Duration) *Session {
	return &Session{
		userID:    userID,
		deps:      deps,
		debouncer: shipping.NewDebouncer(sched, debounce),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DrainNotices returns and clears the revocation messages gathered since the
// last call.
func (s *Session) DrainNotices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// SetCart installs the persisted cart, resolves missing catalog metadata and
// reloads the voucher catalog. A newer SetCart cancels the fetches of an
// older one.
func (s *Session) SetCart(ctx context.Context, lines []cart.Line, platform map[string]cart.PlatformVoucherInfo) error {
	if _, err := s.dispatch(ctx, CartChanged{Lines: lines, Platform: platform, At: s.deps.now()}); err != nil {
		return err
	}
	version := s.State().CartVersion

	loadCtx, seq := s.beginLoad(ctx)
	defer s.endLoad(seq)

	if err := s.deps.catalog.EnsureLoaded(loadCtx, cart.LookupProductIDs(lines)); err != nil {
		return supersededOr(ctx, err)
	}
	if _, err := s.dispatch(ctx, CatalogResolved{Products: s.deps.catalog.Snapshot(), At: s.deps.now()}); err != nil {
		return err
	}

	snap, err := vouchers.Load(loadCtx, s.deps.vouchers, cart.ProductIDs(lines), s.deps.logg)
	if err != nil {
		return supersededOr(ctx, err)
	}
	_, err = s.dispatch(ctx, VoucherCatalogLoaded{CartVersion: version, Vouchers: snap, At: s.deps.now()})
	return err
}

// SelectAddress sets the delivery destination and schedules a quote.
func (s *Session) SelectAddress(ctx context.Context, dest shipping.Destination) error {
	_, err := s.dispatch(ctx, AddressSelected{Destination: dest})
	return err
}

// ApplyVoucher binds code to key. Conflicts and ineligible vouchers are
// rejected without changing state.
func (s *Session) ApplyVoucher(ctx context.Context, key pricing.ScopeKey, code string) error {
	_, err := s.dispatch(ctx, VoucherApplied{Key: key, Code: code, At: s.deps.now()})
	return err
}

// RemoveVoucher unbinds code.
func (s *Session) RemoveVoucher(ctx context.Context, code string) error {
	_, err := s.dispatch(ctx, VoucherRemoved{Code: code})
	return err
}

// Flush cancels any pending debounce and quotes immediately when the current
// quote is missing or out of date. An in-flight quote for unchanged state is
// left to finish.
func (s *Session) Flush(ctx context.Context) {
	s.debouncer.Stop()
	if s.State().NeedsQuote() {
		s.runQuote(ctx)
	}
}

// Close stops pending timers and in-flight catalog fetches.
func (s *Session) Close() {
	s.debouncer.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
}

func (s *Session) dispatch(ctx context.Context, e Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state
	next, err := Reduce(s.state, e)
	if err != nil {
		return before, err
	}
	s.state = next

	if len(next.Revocations) > 0 {
		s.recordRevocations(ctx, next.Revocations)
	}
	if next.StaleQuotesDropped > before.StaleQuotesDropped {
		s.deps.metrics.IncStaleQuote()
		s.deps.logg.Info(s.deps.logg.WithField(ctx, "quote_generation", next.QuoteGeneration), "discarded stale shipping quote")
	}

	switch e.(type) {
	case CartChanged, CatalogResolved, AddressSelected, QuoteCompleted:
		if next.NeedsQuote() {
			s.scheduleQuote(ctx)
		}
	}
	return next, nil
}

func (s *Session) recordRevocations(ctx context.Context, revs []pricing.Revocation) {
	for _, r := range revs {
		s.notices = append(s.notices, r.Message)
		s.deps.metrics.IncRevocation(r.Reason.String())
		s.deps.logg.Info(s.deps.logg.WithFields(ctx, map[string]any{
			"voucher_code": r.Code,
			"scope":        r.Key.String(),
			"reason":       r.Reason.String(),
		}), "voucher revoked")
	}
}

func (s *Session) scheduleQuote(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	s.debouncer.Trigger(func() { s.runQuote(base) })
}

func (s *Session) runQuote(ctx context.Context) {
	s.mu.Lock()
	if !s.state.Address.Valid() || len(s.state.SelectedLines()) == 0 {
		s.mu.Unlock()
		return
	}
	gen := s.state.QuoteGeneration + 1
	s.state, _ = Reduce(s.state, QuoteStarted{Generation: gen})
	groups := s.state.Groups
	dest := s.state.Address
	products := s.state.Products
	s.mu.Unlock()

	result := s.deps.quoter.Quote(ctx, groups, dest, products)
	_, _ = s.dispatch(ctx, QuoteCompleted{Generation: gen, Result: result})
}

func (s *Session) beginLoad(ctx context.Context) (context.Context, uint64) {
	loadCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadCancel != nil {
		s.loadCancel()
	}
	s.loadSeq++
	s.loadCancel = cancel
	return loadCtx, s.loadSeq
}

func (s *Session) endLoad(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.loadSeq && s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
}

// supersededOr drops the error of a fetch cancelled by a newer cart load and
// keeps every other error.
func supersededOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
