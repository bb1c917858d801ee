package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxOrderMessageLength = 500

type addressRequest struct {
	AddressID  string `json:"addressId" validate:"required,max=64"`
	DistrictID int    `json:"districtId" validate:"gt=0"`
	WardCode   string `json:"wardCode" validate:"required,max=32"`
}

type pendingRequest struct {
	LineIDs         []string          `json:"lineIds" validate:"required,min=1,dive,required"`
	Address         addressRequest    `json:"address" validate:"required"`
	ProductVouchers map[string]string `json:"productVouchers,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	StoreVouchers   map[string]string `json:"storeVouchers,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
}

type applyVoucherRequest struct {
	Code     string `json:"code" validate:"required,max=64"`
	Scope    string `json:"scope" validate:"required,oneof=PRODUCT STORE_WIDE"`
	TargetID string `json:"targetId" validate:"required"`
}

type submitRequest struct {
	Message *string `json:"message,omitempty"`
}

// CheckoutSummary returns the priced checkout view, quoting shipping when the
// current quote is missing or stale.
func CheckoutSummary(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Summary(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CheckoutRefresh reloads the persisted cart before summarizing.
func CheckoutRefresh(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Refresh(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CheckoutSavePending stores the lines, address and vouchers chosen for
// checkout.
func CheckoutSavePending(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload pendingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.SavePending(r.Context(), middleware.UserIDFromContext(r.Context()), checkoutsvc.PendingRequest{
			LineIDs: payload.LineIDs,
			Address: shipping.Destination{
				AddressID:  strings.TrimSpace(payload.Address.AddressID),
				DistrictID: payload.Address.DistrictID,
				WardCode:   strings.TrimSpace(payload.Address.WardCode),
			},
			ProductVouchers: payload.ProductVouchers,
			StoreVouchers:   payload.StoreVouchers,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CheckoutApplyVoucher binds a shop voucher to a product or store.
func CheckoutApplyVoucher(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload applyVoucherRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := enums.ParseVoucherScope(payload.Scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid voucher scope"))
			return
		}

		key := pricing.ScopeKey{Scope: scope, ID: strings.TrimSpace(payload.TargetID)}
		summary, err := svc.ApplyVoucher(r.Context(), middleware.UserIDFromContext(r.Context()), key, strings.TrimSpace(payload.Code))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CheckoutRemoveVoucher unbinds an applied voucher.
func CheckoutRemoveVoucher(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required"))
			return
		}
		summary, err := svc.RemoveVoucher(r.Context(), middleware.UserIDFromContext(r.Context()), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CheckoutSubmit places the order for the pending checkout.
func CheckoutSubmit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload submitRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		key := strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		result, err := svc.Submit(r.Context(), middleware.UserIDFromContext(r.Context()), checkoutsvc.SubmitRequest{
			IdempotencyKey: key,
			Message:        validators.SanitizeOptional(payload.Message, maxOrderMessageLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutOrderDetail returns a submitted order owned by the caller.
func CheckoutOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}
		detail, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}
