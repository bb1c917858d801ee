package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

type cartStore interface {
	ListByUser(ctx context.Context, userID string) (*cart.Snapshot, error)
	SetSelected(ctx context.Context, userID string, lineIDs []string, selected bool) error
	RemoveLines(ctx context.Context, userID string, lineIDs []string) error
}

type pendingStore interface {
	Save(ctx context.Context, rec PendingRecord) error
	Load(ctx context.Context, userID string) (*PendingRecord, error)
	Clear(ctx context.Context, userID string) error
}

// Submission is a fully priced order handed to the order service.
type Submission struct {
	UserID         string
	IdempotencyKey string
	LineIDs        []string
	Payload        Payload
	Totals         pricing.Totals
}

// SubmitResult is the order service's answer.
type SubmitResult struct {
	OrderID string            `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
}

// Submitter accepts assembled checkout payloads.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (*SubmitResult, error)
}

// PendingRequest selects lines, a destination and vouchers for checkout.
type PendingRequest struct {
	LineIDs         []string
	Address         shipping.Destination
	ProductVouchers map[string]string
	StoreVouchers   map[string]string
}

// SubmitRequest carries the caller inputs of an order submission.
type SubmitRequest struct {
	IdempotencyKey string
	Message        *string
}

// Service exposes the checkout engine per user.
type Service interface {
	Summary(ctx context.Context, userID string) (*Summary, error)
	Refresh(ctx context.Context, userID string) (*Summary, error)
	SavePending(ctx context.Context, userID string, req PendingRequest) (*Summary, error)
	ApplyVoucher(ctx context.Context, userID string, key pricing.ScopeKey, code string) (*Summary, error)
	RemoveVoucher(ctx context.Context, userID, code string) (*Summary, error)
	Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResult, error)
	Close()
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Cart      cartStore
	Catalog   catalogResolver
	Vouchers  vouchers.Catalog
	Quoter    quoter
	Submitter Submitter
	Pending   pendingStore
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Debounce  time.Duration
	Scheduler shipping.Scheduler
	Clock     func() time.Time
}

type service struct {
	cart      cartStore
	pending   pendingStore
	submitter Submitter
	builder   *PayloadBuilder
	deps      sessionDeps
	debounce  time.Duration
	scheduler shipping.Scheduler
	logg      *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	if p.Cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog resolver required")
	}
	if p.Vouchers == nil {
		return nil, fmt.Errorf("voucher catalog required")
	}
	if p.Quoter == nil {
		return nil, fmt.Errorf("shipping quoter required")
	}
	if p.Submitter == nil {
		return nil, fmt.Errorf("order submitter required")
	}
	if p.Pending == nil {
		return nil, fmt.Errorf("pending store required")
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Scheduler == nil {
		p.Scheduler = shipping.TimerScheduler{}
	}
	builder, err := NewPayloadBuilder(p.Vouchers, p.Logger, p.Clock)
	if err != nil {
		return nil, err
	}
	return &service{
		cart:      p.Cart,
		pending:   p.Pending,
		submitter: p.Submitter,
		builder:   builder,
		deps: sessionDeps{
			catalog:  p.Catalog,
			vouchers: p.Vouchers,
			quoter:   p.Quoter,
			metrics:  p.Metrics,
			logg:     p.Logger,
			now:      p.Clock,
		},
		debounce:  p.Debounce,
		scheduler: p.Scheduler,
		logg:      p.Logger,
		sessions:  make(map[string]*Session),
	}, nil
}

func (s *service) Summary(ctx context.Context, userID string) (*Summary, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, sess), nil
}

func (s *service) Refresh(ctx context.Context, userID string) (*Summary, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.reload(ctx, userID, sess); err != nil {
		return nil, err
	}
	return s.summarize(ctx, sess), nil
}

func (s *service) SavePending(ctx context.Context, userID string, req PendingRequest) (*Summary, error) {
	if len(req.LineIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select at least one cart line")
	}
	if !req.Address.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address district and ward are required")
	}
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	chosen := make(map[string]struct{}, len(req.LineIDs))
	for _, id := range req.LineIDs {
		chosen[id] = struct{}{}
	}
	var selected, deselected []string
	for _, l := range snap.Lines {
		if _, ok := chosen[l.ID]; ok {
			selected = append(selected, l.ID)
			delete(chosen, l.ID)
			continue
		}
		deselected = append(deselected, l.ID)
	}
	if len(chosen) > 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown cart lines: %s", strings.Join(sortedKeys(chosen), ", "))
	}
	if err := multierr.Combine(
		s.cart.SetSelected(ctx, userID, selected, true),
		s.cart.SetSelected(ctx, userID, deselected, false),
	); err != nil {
		return nil, err
	}

	if err := s.reload(ctx, userID, sess); err != nil {
		return nil, err
	}
	if err := sess.SelectAddress(ctx, req.Address); err != nil {
		return nil, err
	}
	for _, pid := range sortedKeys(req.ProductVouchers) {
		if err := sess.ApplyVoucher(ctx, pricing.ProductKey(pid), req.ProductVouchers[pid]); err != nil {
			return nil, err
		}
	}
	for _, sid := range sortedKeys(req.StoreVouchers) {
		if err := sess.ApplyVoucher(ctx, pricing.StoreKey(sid), req.StoreVouchers[sid]); err != nil {
			return nil, err
		}
	}

	if err := s.persistPending(ctx, userID, sess, s.deps.now()); err != nil {
		return nil, err
	}
	return s.summarize(ctx, sess), nil
}

func (s *service) ApplyVoucher(ctx context.Context, userID string, key pricing.ScopeKey, code string) (*Summary, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.ApplyVoucher(ctx, key, code); err != nil {
		return nil, err
	}
	if err := s.touchPending(ctx, userID, sess); err != nil {
		return nil, err
	}
	return s.summarize(ctx, sess), nil
}

func (s *service) RemoveVoucher(ctx context.Context, userID, code string) (*Summary, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, held := sess.State().Bindings.HolderOf(code); !held {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "voucher %s is not applied", code)
	}
	if err := sess.RemoveVoucher(ctx, code); err != nil {
		return nil, err
	}
	if err := s.touchPending(ctx, userID, sess); err != nil {
		return nil, err
	}
	return s.summarize(ctx, sess), nil
}

func (s *service) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResult, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess.Flush(ctx)

	st := sess.State()
	if reason := st.BlockReason(); reason != "" {
		details := map[string]any{"reason": reason}
		if st.Shipping != nil && len(st.Shipping.Messages) > 0 {
			details["shipping_errors"] = st.Shipping.Messages
		}
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "checkout blocked: %s", reason).WithDetails(details)
	}

	selected := st.SelectedLines()
	lineIDs := make([]string, 0, len(selected))
	for _, l := range selected {
		lineIDs = append(lineIDs, l.ID)
	}
	payload := s.builder.Build(ctx, PayloadInput{
		Lines:     st.Lines,
		Platform:  st.Platform,
		Bindings:  st.Bindings,
		Products:  st.Products,
		Vouchers:  st.Vouchers,
		AddressID: st.Address.AddressID,
		Message:   req.Message,
		Tiers:     st.Shipping.Tiers(),
	})

	result, err := s.submitter.Submit(ctx, Submission{
		UserID:         userID,
		IdempotencyKey: req.IdempotencyKey,
		LineIDs:        lineIDs,
		Payload:        payload,
		Totals:         st.Totals(),
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithCheckoutID(ctx, result.OrderID)
	if err := s.pending.Clear(ctx, userID); err != nil {
		s.logg.Error(ctx, "failed to clear pending checkout", err)
	}
	if err := s.cart.RemoveLines(ctx, userID, lineIDs); err != nil {
		s.logg.Error(ctx, "failed to remove purchased cart lines", err)
	} else if err := s.reload(ctx, userID, sess); err != nil {
		s.logg.Error(ctx, "failed to reload cart after submission", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "items", len(payload.Items)), "checkout submitted")
	return result, nil
}

func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

func (s *service) session(ctx context.Context, userID string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = newSession(userID, s.deps, s.scheduler, s.debounce)
		s.sessions[userID] = sess
	}
	s.mu.Unlock()

	if ok {
		return sess, nil
	}
	if err := s.restore(ctx, userID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// restore loads the cart into a fresh session and replays the pending record.
func (s *service) restore(ctx context.Context, userID string, sess *Session) error {
	if err := s.reload(ctx, userID, sess); err != nil {
		s.forget(userID)
		return err
	}
	rec, err := s.pending.Load(ctx, userID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "pending checkout unavailable")
		return nil
	}
	if rec == nil {
		return nil
	}
	_ = sess.SelectAddress(ctx, shipping.Destination{AddressID: rec.AddressID, DistrictID: rec.DistrictID, WardCode: rec.WardCode})

	var errs error
	for _, pid := range sortedKeys(rec.ProductVouchers) {
		errs = multierr.Append(errs, sess.ApplyVoucher(ctx, pricing.ProductKey(pid), rec.ProductVouchers[pid]))
	}
	for _, sid := range sortedKeys(rec.StoreVouchers) {
		errs = multierr.Append(errs, sess.ApplyVoucher(ctx, pricing.StoreKey(sid), rec.StoreVouchers[sid]))
	}
	if errs != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", errs.Error()), "dropped vouchers from pending checkout")
	}
	return nil
}

func (s *service) forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.Close()
		delete(s.sessions, userID)
	}
}

func (s *service) reload(ctx context.Context, userID string, sess *Session) error {
	snap, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	return sess.SetCart(ctx, snap.Lines, snap.Platform)
}

func (s *service) summarize(ctx context.Context, sess *Session) *Summary {
	sess.Flush(ctx)
	return summarize(sess.State(), sess.DrainNotices())
}

func (s *service) touchPending(ctx context.Context, userID string, sess *Session) error {
	rec, err := s.pending.Load(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return s.persistPending(ctx, userID, sess, rec.CreatedAt)
}

func (s *service) persistPending(ctx context.Context, userID string, sess *Session, createdAt time.Time) error {
	st := sess.State()
	rec := PendingRecord{
		UserID:          userID,
		ProductVouchers: map[string]string{},
		StoreVouchers:   map[string]string{},
		AddressID:       st.Address.AddressID,
		DistrictID:      st.Address.DistrictID,
		WardCode:        st.Address.WardCode,
		CreatedAt:       createdAt,
	}
	for _, l := range st.SelectedLines() {
		rec.LineIDs = append(rec.LineIDs, l.ID)
	}
	for _, a := range st.Bindings.Sorted() {
		if a.Key.Scope == enums.VoucherScopeStoreWide {
			rec.StoreVouchers[a.Key.ID] = a.Voucher.Code
			continue
		}
		rec.ProductVouchers[a.Key.ID] = a.Voucher.Code
	}
	return s.pending.Save(ctx, rec)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
