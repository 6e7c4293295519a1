package settings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes the settings endpoints.
type Handler struct {
	Svc *Service
}

type patchRequest struct {
	Changes map[string]json.RawMessage `json:"changes"`
}

// Get handles GET /api/v1/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s)
}

// Replace handles PUT /api/v1/admin/settings. Sections missing from the body
// are reset to their defaults.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	in := Defaults()
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Svc.Replace(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// Patch handles PATCH /api/v1/admin/settings with a body of the form
// {"changes": {"vat_config.percentage": 10}}.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Changes) == 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "changes are required", nil)
		return
	}
	changes := make(map[string]string, len(req.Changes))
	for path, raw := range req.Changes {
		v, err := scalarString(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "value must be a boolean, number or string", map[string]string{"path": path})
			return
		}
		changes[path] = v
	}
	out, err := h.Svc.Patch(r.Context(), changes)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

func scalarString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case string:
		return t, nil
	default:
		return "", errors.New("not a scalar")
	}
}

func mapError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrUnknownPath):
		return common.NewAppError("UNKNOWN_SETTING", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidValue):
		return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
	default:
		return nil
	}
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, mapError)
}
