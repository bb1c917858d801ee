package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

type stubCheckoutService struct {
	mu        sync.Mutex
	users     []string
	pending   []checkoutsvc.PendingRequest
	applied   []pricing.ScopeKey
	removed   []string
	submits   []checkoutsvc.SubmitRequest
	applyErr  error
	submitErr error
}

func (s *stubCheckoutService) record(userID string) *checkoutsvc.Summary {
	s.users = append(s.users, userID)
	return &checkoutsvc.Summary{Totals: pricing.Totals{Subtotal: 250000, ShippingFee: 35000, Total: 285000}}
}

func (s *stubCheckoutService) Summary(_ context.Context, userID string) (*checkoutsvc.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(userID), nil
}

func (s *stubCheckoutService) Refresh(_ context.Context, userID string) (*checkoutsvc.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(userID), nil
}

func (s *stubCheckoutService) SavePending(_ context.Context, userID string, req checkoutsvc.PendingRequest) (*checkoutsvc.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, req)
	return s.record(userID), nil
}

func (s *stubCheckoutService) ApplyVoucher(_ context.Context, userID string, key pricing.ScopeKey, _ string) (*checkoutsvc.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	s.applied = append(s.applied, key)
	return s.record(userID), nil
}

func (s *stubCheckoutService) RemoveVoucher(_ context.Context, userID, code string) (*checkoutsvc.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, code)
	return s.record(userID), nil
}

func (s *stubCheckoutService) Submit(_ context.Context, _ string, req checkoutsvc.SubmitRequest) (*checkoutsvc.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submits = append(s.submits, req)
	return &checkoutsvc.SubmitResult{OrderID: "order-1", Status: enums.OrderStatusPending}, nil
}

func (s *stubCheckoutService) Close() {}

type stubOrdersService struct {
	detail *orders.OrderDetail
}

func (stubOrdersService) Submit(context.Context, checkoutsvc.Submission) (*checkoutsvc.SubmitResult, error) {
	return nil, errors.New("not used")
}

func (s stubOrdersService) Get(_ context.Context, _ string, id uuid.UUID) (*orders.OrderDetail, error) {
	if s.detail == nil || s.detail.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.detail, nil
}

type routerFixture struct {
	handler  http.Handler
	checkout *stubCheckoutService
	orderID  uuid.UUID
}

func newRouterFixture(t *testing.T, dbErr error) *routerFixture {
	t.Helper()
	cfg := &config.Config{
		App:      config.AppConfig{Env: "test"},
		Checkout: config.CheckoutConfig{IdempotencyTTL: time.Hour},
	}
	orderID := uuid.New()
	svc := &stubCheckoutService{}
	handler := NewRouter(
		cfg,
		nil,
		stubPinger{err: dbErr},
		stubPinger{},
		&memoryIdempotency{data: map[string]string{}},
		prometheus.NewRegistry(),
		svc,
		stubOrdersService{detail: &orders.OrderDetail{ID: orderID, Status: enums.OrderStatusPending}},
	)
	return &routerFixture{handler: handler, checkout: svc, orderID: orderID}
}

func (f *routerFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func asUser(extra map[string]string) map[string]string {
	h := map[string]string{middleware.UserIDHeader: "u1"}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v (%s)", err, resp.Body.String())
	}
	return payload.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	f := newRouterFixture(t, nil)
	if resp := f.do(http.MethodGet, "/health/live", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected live 200, got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/health/ready", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected ready 200, got %d", resp.Code)
	}

	down := newRouterFixture(t, errors.New("connection refused"))
	resp := down.do(http.MethodGet, "/health/ready", "", nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected ready 503 when the database is down, got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t, nil)
	if resp := f.do(http.MethodGet, "/metrics", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", resp.Code)
	}
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	f := newRouterFixture(t, nil)
	resp := f.do(http.MethodGet, "/api/v1/checkout/summary", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}
	if len(f.checkout.users) != 0 {
		t.Fatalf("service should not be called without identity")
	}
}

func TestCheckoutSummary(t *testing.T) {
	f := newRouterFixture(t, nil)
	resp := f.do(http.MethodGet, "/api/v1/checkout/summary", "", asUser(nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Data checkoutsvc.Summary `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if body.Data.Totals.Total != 285000 {
		t.Fatalf("unexpected total %d", body.Data.Totals.Total)
	}
	if f.checkout.users[0] != "u1" {
		t.Fatalf("expected caller identity forwarded, got %q", f.checkout.users[0])
	}
}

func TestCheckoutSavePendingValidatesBody(t *testing.T) {
	f := newRouterFixture(t, nil)

	resp := f.do(http.MethodPost, "/api/v1/checkout/pending", `{"lineIds":[],"address":{"addressId":"a1","districtId":0,"wardCode":""}}`, asUser(nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	body := `{"lineIds":["l1","l2"],"address":{"addressId":"a1","districtId":1542,"wardCode":"21211"},"productVouchers":{"p1":"TEN"}}`
	resp = f.do(http.MethodPost, "/api/v1/checkout/pending", body, asUser(nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	got := f.checkout.pending[0]
	if got.Address.DistrictID != 1542 || got.Address.WardCode != "21211" {
		t.Fatalf("unexpected address %+v", got.Address)
	}
	if got.ProductVouchers["p1"] != "TEN" {
		t.Fatalf("expected product voucher forwarded, got %v", got.ProductVouchers)
	}
}

func TestCheckoutApplyVoucher(t *testing.T) {
	f := newRouterFixture(t, nil)

	resp := f.do(http.MethodPost, "/api/v1/checkout/vouchers", `{"code":"TEN","scope":"GLOBAL","targetId":"p1"}`, asUser(nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scope, got %d", resp.Code)
	}

	resp = f.do(http.MethodPost, "/api/v1/checkout/vouchers", `{"code":"TEN","scope":"STORE_WIDE","targetId":"s1"}`, asUser(nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if f.checkout.applied[0] != pricing.StoreKey("s1") {
		t.Fatalf("unexpected scope key %+v", f.checkout.applied[0])
	}

	f.checkout.applyErr = pkgerrors.New(pkgerrors.CodeConflict, "voucher TEN is already applied to store s1")
	resp = f.do(http.MethodPost, "/api/v1/checkout/vouchers", `{"code":"TEN","scope":"PRODUCT","targetId":"p1"}`, asUser(nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("unexpected error code %s", code)
	}
}

func TestCheckoutRemoveVoucher(t *testing.T) {
	f := newRouterFixture(t, nil)
	resp := f.do(http.MethodDelete, "/api/v1/checkout/vouchers/TEN", "", asUser(nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(f.checkout.removed) != 1 || f.checkout.removed[0] != "TEN" {
		t.Fatalf("unexpected removals %v", f.checkout.removed)
	}
}

func TestCheckoutSubmitIsIdempotent(t *testing.T) {
	f := newRouterFixture(t, nil)

	resp := f.do(http.MethodPost, "/api/v1/checkout", `{"message":"leave at door"}`, asUser(nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", resp.Code)
	}

	headers := asUser(map[string]string{middleware.IdempotencyKeyHeader: "k1"})
	first := f.do(http.MethodPost, "/api/v1/checkout", `{"message":"leave at door"}`, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	replay := f.do(http.MethodPost, "/api/v1/checkout", `{"message":"leave at door"}`, headers)
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", replay.Code)
	}
	if replay.Header().Get(middleware.IdempotentReplayHeader) != "true" {
		t.Fatalf("expected replay to be marked")
	}
	if len(f.checkout.submits) != 1 {
		t.Fatalf("expected a single submission, got %d", len(f.checkout.submits))
	}
	sub := f.checkout.submits[0]
	if sub.IdempotencyKey != "k1" || sub.Message == nil || *sub.Message != "leave at door" {
		t.Fatalf("unexpected submission %+v", sub)
	}
}

func TestCheckoutSubmitBlocked(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.checkout.submitErr = pkgerrors.New(pkgerrors.CodeStateConflict, "checkout blocked: shipping fee could not be calculated")

	resp := f.do(http.MethodPost, "/api/v1/checkout", "", asUser(map[string]string{middleware.IdempotencyKeyHeader: "k2"}))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error code %s", code)
	}

	f.checkout.submitErr = nil
	retry := f.do(http.MethodPost, "/api/v1/checkout", "", asUser(map[string]string{middleware.IdempotencyKeyHeader: "k2"}))
	if retry.Code != http.StatusCreated {
		t.Fatalf("expected blocked attempt to release its key, got %d", retry.Code)
	}
}

func TestCheckoutOrderDetail(t *testing.T) {
	f := newRouterFixture(t, nil)

	if resp := f.do(http.MethodGet, "/api/v1/checkout/orders/not-a-uuid", "", asUser(nil)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/checkout/orders/"+uuid.NewString(), "", asUser(nil)); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/checkout/orders/"+f.orderID.String(), "", asUser(nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
