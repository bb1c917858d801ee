package shipping

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/pkg/carrier"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

// Carrier quotes a shipping fee for one package.
type Carrier interface {
	Quote(ctx context.Context, req carrier.FeeRequest) (*carrier.FeeResponse, error)
}

// Quote is one store's shipping outcome: a fee or an error.
type Quote struct {
	StoreID     string
	StoreName   string
	Fee         int64
	Tier        enums.ServiceTier
	WeightGrams int64
	Err         *QuoteError
}

func (q Quote) Failed() bool {
	return q.Err != nil
}

// Result is an aggregate quote over every store with selected lines. When any
// store failed, TotalFee is zero and Blocked is set.
type Result struct {
	Quotes   map[string]Quote
	Order    []string
	TotalFee int64
	Blocked  bool
	// Messages lists "store name: reason" for each failed store in group order.
	Messages []string
}

// Tiers returns the service tier chosen for each quoted store.
func (r Result) Tiers() map[string]enums.ServiceTier {
	out := make(map[string]enums.ServiceTier, len(r.Quotes))
	for id, q := range r.Quotes {
		out[id] = q.Tier
	}
	return out
}

// Orchestrator fans carrier quotes out across stores and joins them into a
// single fail-closed result.
type Orchestrator struct {
	carrier Carrier
	tiers   TierSelector
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewOrchestrator(c Carrier, tiers TierSelector, m *metrics.CheckoutMetrics, logg *logger.Logger) (*Orchestrator, error) {
	if c == nil {
		return nil, fmt.Errorf("carrier required")
	}
	return &Orchestrator{carrier: c, tiers: tiers, metrics: m, logg: logg}, nil
}

// Quote issues one carrier call per store group with selected lines, all
// concurrently, and returns once every call has finished.
func (o *Orchestrator) Quote(ctx context.Context, groups []cart.StoreGroup, dest Destination, products cart.ProductSource) Result {
	quoted := make([]cart.StoreGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.SelectedLines()) > 0 {
			quoted = append(quoted, g)
		}
	}

	quotes := make([]Quote, len(quoted))
	var eg errgroup.Group
	for i, g := range quoted {
		eg.Go(func() error {
			quotes[i] = o.quoteStore(ctx, g, dest, products)
			return nil
		})
	}
	_ = eg.Wait()

	return o.aggregate(ctx, quotes)
}

func (o *Orchestrator) quoteStore(ctx context.Context, g cart.StoreGroup, dest Destination, products cart.ProductSource) Quote {
	q := Quote{StoreID: g.StoreID, StoreName: g.StoreName}
	prepared, qerr := buildStoreRequest(g, dest, products, o.tiers)
	q.Tier = prepared.tier
	q.WeightGrams = prepared.weightGrams
	if qerr != nil {
		q.Err = qerr
		return q
	}

	start := time.Now()
	resp, err := o.carrier.Quote(ctx, prepared.req)
	if err != nil {
		o.metrics.ObserveQuote(metrics.OutcomeFailure, time.Since(start))
		q.Err = classifyCarrierError(err)
		o.logg.Warn(o.logg.WithFields(o.logg.WithStoreID(ctx, g.StoreID), map[string]any{
			"error":      err.Error(),
			"error_kind": q.Err.Kind.String(),
		}), "carrier quote failed")
		return q
	}
	o.metrics.ObserveQuote(metrics.OutcomeSuccess, time.Since(start))
	if resp == nil || resp.Total == nil {
		q.Err = newQuoteError(enums.QuoteErrorKindFeeMissing)
		return q
	}
	q.Fee = *resp.Total
	return q
}

func (o *Orchestrator) aggregate(ctx context.Context, quotes []Quote) Result {
	res := Result{
		Quotes: make(map[string]Quote, len(quotes)),
		Order:  make([]string, 0, len(quotes)),
	}
	var (
		sum  int64
		errs error
	)
	for _, q := range quotes {
		res.Quotes[q.StoreID] = q
		res.Order = append(res.Order, q.StoreID)
		if q.Failed() {
			o.metrics.IncQuoteFailure(q.Err.Kind.String())
			res.Messages = append(res.Messages, fmt.Sprintf("%s: %s", displayName(q), q.Err.Message))
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", q.StoreID, q.Err))
			continue
		}
		sum += q.Fee
	}

	if errs != nil {
		res.Blocked = true
		o.logg.Warn(o.logg.WithFields(ctx, map[string]any{
			"failed_stores": len(multierr.Errors(errs)),
			"error":         errs.Error(),
		}), "shipping quote blocked checkout")
		return res
	}
	res.TotalFee = sum
	return res
}

func displayName(q Quote) string {
	if q.StoreName != "" {
		return q.StoreName
	}
	return q.StoreID
}
