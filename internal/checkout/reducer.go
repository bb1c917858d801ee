package checkout

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// Event is an input to Reduce.
type Event interface {
	event()
}

// CartChanged replaces the cart lines with the persisted view.
type CartChanged struct {
	Lines    []cart.Line
	Platform map[string]cart.PlatformVoucherInfo
	At       time.Time
}

// CatalogResolved merges newly resolved catalog metadata.
type CatalogResolved struct {
	Products catalog.Snapshot
	At       time.Time
}

// VoucherCatalogLoaded installs the voucher catalog loaded for CartVersion.
type VoucherCatalogLoaded struct {
	CartVersion uint64
	Vouchers    *vouchers.Snapshot
	At          time.Time
}

// AddressSelected sets the delivery destination.
type AddressSelected struct {
	Destination shipping.Destination
}

// VoucherApplied binds Code to Key.
type VoucherApplied struct {
	Key  pricing.ScopeKey
	Code string
	At   time.Time
}

// VoucherRemoved unbinds Code.
type VoucherRemoved struct {
	Code string
}

// QuoteStarted marks the start of the aggregate quote with Generation.
type QuoteStarted struct {
	Generation uint64
}

// QuoteCompleted delivers the aggregate quote started with Generation.
type QuoteCompleted struct {
	Generation uint64
	Result     shipping.Result
}

func (CartChanged) event()          {}
func (CatalogResolved) event()      {}
func (VoucherCatalogLoaded) event() {}
func (AddressSelected) event()      {}
func (VoucherApplied) event()       {}
func (VoucherRemoved) event()       {}
func (QuoteStarted) event()         {}
func (QuoteCompleted) event()       {}

// Reduce applies e to s and returns the next state. Only a rejected
// VoucherApplied returns an error, and then s is returned unchanged.
func Reduce(s State, e Event) (State, error) {
	prev := s
	s.Revocations = nil

	switch ev := e.(type) {
	case CartChanged:
		s.CartVersion++
		s.Lines = append([]cart.Line(nil), ev.Lines...)
		s.Platform = ev.Platform
		s.Now = later(s.Now, ev.At)
		s.QuoteDirty = true
		return revalidate(regroup(s)), nil

	case CatalogResolved:
		s.Products = s.Products.Merge(ev.Products)
		s.Now = later(s.Now, ev.At)
		s.QuoteDirty = true
		return revalidate(regroup(s)), nil

	case VoucherCatalogLoaded:
		if ev.CartVersion != s.CartVersion {
			return s, nil
		}
		s.Vouchers = ev.Vouchers
		s.Now = later(s.Now, ev.At)
		return revalidate(s), nil

	case AddressSelected:
		if ev.Destination != s.Address {
			s.Address = ev.Destination
			s.QuoteDirty = true
		}
		return s, nil

	case VoucherApplied:
		s.Now = later(s.Now, ev.At)
		next, err := applyVoucher(s, ev)
		if err != nil {
			return prev, err
		}
		return next, nil

	case VoucherRemoved:
		s.Bindings = s.Bindings.Remove(ev.Code)
		return s, nil

	case QuoteStarted:
		if ev.Generation <= s.QuoteGeneration {
			return s, nil
		}
		s.QuoteGeneration = ev.Generation
		s.QuoteInFlight = true
		s.QuoteDirty = false
		return s, nil

	case QuoteCompleted:
		if ev.Generation != s.QuoteGeneration || !s.QuoteInFlight {
			s.StaleQuotesDropped++
			return s, nil
		}
		result := ev.Result
		s.Shipping = &result
		s.QuoteInFlight = false
		return s, nil

	default:
		return s, nil
	}
}

func regroup(s State) State {
	s.Groups = cart.Group(s.Lines, s.Products)
	return s
}

func revalidate(s State) State {
	s.Bindings, s.Revocations = pricing.Validate(s.Bindings, pricing.ValidationInput{
		Vouchers:        s.Vouchers,
		Products:        s.Products,
		CatalogComplete: s.CatalogComplete(),
		Groups:          s.Groups,
		Now:             s.Now,
	})
	return s
}

func applyVoucher(s State, ev VoucherApplied) (State, error) {
	if !s.Vouchers.Loaded() {
		return s, pkgerrors.New(pkgerrors.CodeStateConflict, "vouchers are still loading")
	}

	storeID, ok := storeForKey(s, ev.Key)
	if !ok {
		return s, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is not in the cart", ev.Key)
	}
	v, found := s.Vouchers.Find(ev.Code, ev.Key.Scope, storeID)
	if !found {
		return s, pkgerrors.Newf(pkgerrors.CodeNotFound, "voucher %s is not available for %s", ev.Code, ev.Key)
	}
	if !v.ActiveAt(s.Now) {
		return s, pkgerrors.Newf(pkgerrors.CodeValidation, "voucher %s is not active", ev.Code)
	}

	subtotal := subtotalFor(s.Groups, storeID)
	if v.MinOrderValue != nil && *v.MinOrderValue > subtotal {
		return s, pkgerrors.Newf(pkgerrors.CodeValidation,
			"voucher %s requires a minimum order of %d but the store subtotal is %d", ev.Code, *v.MinOrderValue, subtotal).
			WithDetails(map[string]any{"min_order": *v.MinOrderValue, "subtotal": subtotal})
	}

	next, err := s.Bindings.Apply(ev.Key, v, pricing.VoucherDiscount(v, subtotal))
	if err != nil {
		return s, err
	}
	s.Bindings = next
	return s, nil
}

func storeForKey(s State, key pricing.ScopeKey) (string, bool) {
	if key.Scope == enums.VoucherScopeStoreWide {
		for _, g := range s.Groups {
			if g.StoreID == key.ID && g.Resolved {
				return g.StoreID, true
			}
		}
		return "", false
	}
	for _, l := range s.Lines {
		if l.ProductID == key.ID {
			return cart.StoreOf(s.Products, key.ID)
		}
	}
	return "", false
}

func subtotalFor(groups []cart.StoreGroup, storeID string) int64 {
	for _, g := range groups {
		if g.StoreID == storeID {
			return g.SelectedSubtotal
		}
	}
	return 0
}

func later(current, candidate time.Time) time.Time {
	if candidate.After(current) {
		return candidate
	}
	return current
}
