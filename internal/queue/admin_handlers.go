package queue

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// AdminHandler serves the queue admin endpoints.
type AdminHandler struct {
	Inspector Inspector
	Queue     string
	Logger    zerolog.Logger
}

type replayRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// Stats handles GET /api/v1/admin/queue.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	info, err := h.Inspector.GetQueueInfo(h.Queue)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, statsFrom(info))
}

// ListDead handles GET /api/v1/admin/queue/dead.
func (h *AdminHandler) ListDead(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 20, 100)
	tasks, err := h.Inspector.ListArchivedTasks(h.Queue, asynq.PageSize(page.PerPage), asynq.Page(page.Page))
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]DeadTask, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, deadTaskFrom(t))
	}
	if info, err := h.Inspector.GetQueueInfo(h.Queue); err == nil {
		page.TotalItems = info.Archived
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

// Replay handles POST /api/v1/admin/queue/dead/replay. The body names task
// ids, or sets all to move every archived task back to pending.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err, nil)
		return
	}
	if req.All {
		n, err := h.Inspector.RunAllArchivedTasks(h.Queue)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.Logger.Info().Str("queue", h.Queue).Int("count", n).Msg("archived tasks replayed")
		common.Data(w, http.StatusOK, map[string]any{"replayed": n})
		return
	}
	if len(req.IDs) == 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "ids or all required", nil)
		return
	}
	replayed := make([]string, 0, len(req.IDs))
	failed := map[string]string{}
	seen := map[string]bool{}
	for _, raw := range req.IDs {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := h.Inspector.RunTask(h.Queue, id); err != nil {
			failed[id] = err.Error()
			continue
		}
		replayed = append(replayed, id)
	}
	h.Logger.Info().Str("queue", h.Queue).Int("count", len(replayed)).Int("failed", len(failed)).Msg("archived tasks replayed")
	common.Data(w, http.StatusOK, map[string]any{"replayed": replayed, "failed": failed})
}

func (h *AdminHandler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, asynq.ErrQueueNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "queue has no tasks yet", nil)
		return
	}
	h.Logger.Error().Err(err).Str("queue", h.Queue).Msg("queue inspection failed")
	common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue backend unavailable", nil)
}
