package audit

import (
	"net/http"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/admin/audit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 50, 200)
	items, total, err := h.Svc.List(r.Context(), page)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	page.TotalItems = total
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}
