package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type lineRequest struct {
	ProductID     string  `json:"productId" validate:"required,max=64"`
	Name          string  `json:"name" validate:"max=200"`
	Price         float64 `json:"price" validate:"gte=0"`
	DiscountPrice float64 `json:"discountPrice" validate:"gte=0"`
	Quantity      int     `json:"quantity" validate:"gte=1,lte=999"`
}

type qtyRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

type cartResponse struct {
	ID         string  `json:"id"`
	Lines      []Line  `json:"lines"`
	Quantity   int     `json:"quantity"`
	ItemsTotal float64 `json:"itemsTotal"`
}

func present(c Cart) cartResponse {
	return cartResponse{
		ID:         c.ID,
		Lines:      c.Lines,
		Quantity:   c.Quantity(),
		ItemsTotal: pricing.Round2(c.ItemsTotal()),
	}
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	c, err := h.Svc.Create(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, present(c))
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	c, err := h.Svc.Get(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, present(c))
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		writeError(w, err)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	c, err := h.Svc.AddItem(r.Context(), customerID, chi.URLParam(r, "id"), Line(req))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, present(c))
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{productId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req qtyRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		writeError(w, err)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	c, err := h.Svc.UpdateQty(r.Context(), customerID, chi.URLParam(r, "id"), chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, present(c))
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	c, err := h.Svc.RemoveItem(r.Context(), customerID, chi.URLParam(r, "id"), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, present(c))
}

// Clear handles DELETE /api/v1/carts/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	c, err := h.Svc.Clear(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, present(c))
}

// MapError translates cart errors for HTTP callers in other packages.
func MapError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "cart not found", http.StatusNotFound, err)
	case errors.Is(err, ErrForbidden):
		// Reported as missing so cart ids cannot be probed.
		return common.NewAppError("NOT_FOUND", "cart not found", http.StatusNotFound, err)
	case errors.Is(err, ErrLineNotFound):
		return common.NewAppError("NOT_FOUND", "cart line not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidLine):
		return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
	default:
		return nil
	}
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, MapError)
}
