package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler wires order services to HTTP.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	orders, page, err := h.Svc.List(r.Context(), customerID, common.ParsePagination(r, 20, 100))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders, "pagination": page})
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	o, err := h.Svc.Get(r.Context(), customerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, o)
}

// Cancel handles POST /api/v1/orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	o, err := h.Svc.Cancel(r.Context(), customerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, o)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return uuid.Nil, false
	}
	return id, true
}

// MapError translates order errors for HTTP callers in other packages.
func MapError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidTransition):
		return common.NewAppError("INVALID_STATUS", "order is not pending payment", http.StatusConflict, err)
	default:
		return nil
	}
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, MapError)
}
