package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/order"
)

// Handler exposes HTTP endpoints for payment intents.
type Handler struct {
	Svc *Service
}

// Intent handles POST /api/v1/payments/{orderId}/intent.
func (h *Handler) Intent(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	resp, err := h.Svc.CreateIntent(r.Context(), customerID, orderID)
	if err != nil {
		common.WriteError(w, err, mapError)
		return
	}
	common.Data(w, http.StatusCreated, resp)
}

func mapError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrMethodInactive):
		return common.NewAppError("PAYMENT_METHOD_DISABLED", "card payments are disabled", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrOrderNotPending):
		return common.NewAppError("ORDER_NOT_PENDING", "order is not awaiting payment", http.StatusConflict, err)
	case errors.Is(err, ErrNotConfigured):
		return common.NewAppError("PAYMENT_NOT_CONFIGURED", "payments unavailable", http.StatusServiceUnavailable, err)
	case errors.Is(err, order.ErrNotFound):
		return common.NewAppError("ORDER_NOT_FOUND", "order not found", http.StatusNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError("INTENT_FAILED", "payment provider timed out", http.StatusGatewayTimeout, err)
	default:
		return common.NewAppError("INTENT_FAILED", "payment provider rejected the request", http.StatusBadGateway, err)
	}
}
