package analytics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes the sales reports.
type Handler struct {
	Svc *Service
}

// Sales handles GET /api/v1/admin/reports/sales.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.window(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "from": from, "to": to})
}

// ShippingMix handles GET /api/v1/admin/reports/shipping-methods.
func (h *Handler) ShippingMix(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.window(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.Svc.ShippingMix(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "from": from, "to": to})
}

// window reads from/to as RFC 3339 timestamps, or the last days (default
// DefaultRange) ending now.
func (h *Handler) window(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			return time.Time{}, time.Time{}, common.ValidationError("from must be an RFC 3339 timestamp", nil)
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			return time.Time{}, time.Time{}, common.ValidationError("to must be an RFC 3339 timestamp", nil)
		}
		return from.UTC(), to.UTC(), nil
	}
	days := h.Svc.DefaultRange
	if days <= 0 {
		days = 30
	}
	if v, err := strconv.Atoi(q.Get("days")); err == nil && v > 0 && v <= 366 {
		days = v
	}
	to := h.Svc.now().Truncate(24*time.Hour).AddDate(0, 0, 1)
	return to.AddDate(0, 0, -days), to, nil
}

func mapError(err error) *common.AppError {
	if errors.Is(err, ErrInvalidRange) {
		return common.ValidationError("from must be before to", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, mapError)
}
