package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/cart"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// Handler wires checkout services to HTTP.
type Handler struct {
	Svc *Service
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=30"`
}

// Quote handles GET /api/v1/checkout/{cartId}/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	q, err := h.Svc.Quote(r.Context(), customerID, chi.URLParam(r, "cartId"), r.URL.Query().Get("method"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// SaveShipping handles PUT /api/v1/checkout/{cartId}/shipping.
func (h *Handler) SaveShipping(w http.ResponseWriter, r *http.Request) {
	var in ShippingInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	q, err := h.Svc.SaveShipping(r.Context(), customerID, chi.URLParam(r, "cartId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// Prefill handles POST /api/v1/checkout/{cartId}/prefill.
func (h *Handler) Prefill(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	q, err := h.Svc.Prefill(r.Context(), customerID, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// ApplyCoupon handles POST /api/v1/checkout/{cartId}/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		writeError(w, err)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	q, err := h.Svc.ApplyCoupon(r.Context(), customerID, chi.URLParam(r, "cartId"), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// RemoveCoupon handles DELETE /api/v1/checkout/{cartId}/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	q, err := h.Svc.RemoveCoupon(r.Context(), customerID, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// Confirm handles POST /api/v1/checkout/{cartId}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	o, err := h.Svc.Confirm(r.Context(), customerID, chi.URLParam(r, "cartId"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, o)
}

func mapError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return common.NewAppError("EMPTY_CART", "cart is empty", http.StatusConflict, err).
			WithDetails(map[string]string{"redirect": "/products"})
	case errors.Is(err, ErrShippingRequired):
		return common.NewAppError("SHIPPING_REQUIRED", "shipping information must be saved first", http.StatusConflict, err)
	case errors.Is(err, ErrUnknownMethod):
		return common.NewAppError("UNKNOWN_SHIPPING_METHOD", "unknown shipping method", http.StatusBadRequest, err)
	case errors.Is(err, ErrMethodDisabled):
		return common.NewAppError("SHIPPING_METHOD_DISABLED", "shipping method is not available", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrNoShippingMethods):
		return common.NewAppError("NO_SHIPPING_METHOD", "no shipping method is enabled", http.StatusUnprocessableEntity, err)
	case errors.Is(err, pricing.ErrInvalidItem):
		return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
	}
	for _, m := range []common.ErrorMapper{cart.MapError, coupon.MapError, order.MapError} {
		if appErr := m(err); appErr != nil {
			return appErr
		}
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, mapError)
}
