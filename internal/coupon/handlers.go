package coupon

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes administrative coupon endpoints.
type Handler struct {
	Svc *Service
}

// Create handles POST /api/v1/admin/coupons.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, c)
}

// List handles GET /api/v1/admin/coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 20, 100)
	items, total, err := h.Svc.List(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	page.TotalItems = total
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

// Delete handles DELETE /api/v1/admin/coupons/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, ErrNotFound)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeUsage handles DELETE /api/v1/admin/coupons/{id}/usages/{customerId}.
func (h *Handler) RevokeUsage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, ErrNotFound)
		return
	}
	if err := h.Svc.RevokeUsage(r.Context(), id, chi.URLParam(r, "customerId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MapError translates coupon errors for HTTP callers in other packages.
func MapError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("COUPON_NOT_FOUND", "invalid or expired coupon", http.StatusNotFound, err)
	case errors.Is(err, ErrDuplicateCode):
		return common.NewAppError("CONFLICT", "coupon code already exists", http.StatusConflict, err)
	case errors.Is(err, ErrCouponExpired):
		return common.NewAppError("COUPON_EXPIRED", "coupon has expired", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrCouponInactive):
		return common.NewAppError("COUPON_INACTIVE", "coupon is not active", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrCouponAlreadyUsed):
		return common.NewAppError("COUPON_ALREADY_USED", "coupon already used", http.StatusConflict, err)
	case errors.Is(err, ErrCouponUsageLimit):
		return common.NewAppError("COUPON_USAGE_LIMIT", "coupon usage limit reached", http.StatusConflict, err)
	default:
		return nil
	}
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, MapError)
}
