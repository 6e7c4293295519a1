package queue

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/events"
)

type fakeInspector struct {
	info     *asynq.QueueInfo
	infoErr  error
	archived []*asynq.TaskInfo
	ran      []string
	missing  map[string]bool
}

func (f *fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeInspector) ListArchivedTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.archived, nil
}

func (f *fakeInspector) RunTask(_ string, id string) error {
	if f.missing[id] {
		return asynq.ErrTaskNotFound
	}
	f.ran = append(f.ran, id)
	return nil
}

func (f *fakeInspector) RunAllArchivedTasks(string) (int, error) {
	return len(f.archived), nil
}

func deadDelivery(t *testing.T, id string) *asynq.TaskInfo {
	t.Helper()
	task, err := events.NewDeliveryTask(events.Event{
		ID:          uuid.MustParse("5f0c7a52-93a4-4a5e-8d8e-5b3f0f9b2c11"),
		Topic:       "order.created",
		AggregateID: "order-1",
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return &asynq.TaskInfo{ID: id, Type: task.Type(), Payload: task.Payload(), Retried: 8, MaxRetry: 8, LastErr: "410 Gone"}
}

func TestStatsAndDeadList(t *testing.T) {
	in := &fakeInspector{
		info:     &asynq.QueueInfo{Queue: "webhooks", Size: 3, Pending: 1, Archived: 2},
		archived: []*asynq.TaskInfo{deadDelivery(t, "t-1"), {ID: "t-2", Type: "other", Payload: []byte("x")}},
	}
	h := &AdminHandler{Inspector: in, Queue: "webhooks", Logger: zerolog.Nop()}

	rr := httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/admin/queue", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"archived":2`)

	rr = httptest.NewRecorder()
	h.ListDead(rr, httptest.NewRequest(http.MethodGet, "/admin/queue/dead?limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `"topic":"order.created"`)
	require.Contains(t, body, `"lastError":"410 Gone"`)
	require.Contains(t, body, `"id":"t-2"`)
	require.Contains(t, body, `"total_items":2`)
}

func TestStatsUnknownQueue(t *testing.T) {
	h := &AdminHandler{Inspector: &fakeInspector{infoErr: asynq.ErrQueueNotFound}, Queue: "webhooks", Logger: zerolog.Nop()}
	rr := httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/admin/queue", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	h.Inspector = &fakeInspector{infoErr: errors.New("dial tcp: refused")}
	rr = httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/admin/queue", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReplay(t *testing.T) {
	in := &fakeInspector{missing: map[string]bool{"gone": true}}
	h := &AdminHandler{Inspector: in, Queue: "webhooks", Logger: zerolog.Nop()}

	rr := httptest.NewRecorder()
	h.Replay(rr, httptest.NewRequest(http.MethodPost, "/admin/queue/dead/replay", strings.NewReader(`{"ids":["a"," a ","gone","b"]}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"a", "b"}, in.ran)
	require.Contains(t, rr.Body.String(), `"gone"`)

	rr = httptest.NewRecorder()
	h.Replay(rr, httptest.NewRequest(http.MethodPost, "/admin/queue/dead/replay", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	in.archived = []*asynq.TaskInfo{{ID: "x"}, {ID: "y"}}
	rr = httptest.NewRecorder()
	h.Replay(rr, httptest.NewRequest(http.MethodPost, "/admin/queue/dead/replay", strings.NewReader(`{"all":true}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"replayed":2`)
}

func TestDepthCollector(t *testing.T) {
	in := &fakeInspector{info: &asynq.QueueInfo{Queue: "webhooks", Pending: 4, Retry: 2, Archived: 1}}
	c := NewDepthCollector("storefront", in, zerolog.Nop(), "webhooks")
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP storefront_queue_tasks Number of tasks per queue and state.
# TYPE storefront_queue_tasks gauge
storefront_queue_tasks{queue="webhooks",state="active"} 0
storefront_queue_tasks{queue="webhooks",state="archived"} 1
storefront_queue_tasks{queue="webhooks",state="pending"} 4
storefront_queue_tasks{queue="webhooks",state="retry"} 2
storefront_queue_tasks{queue="webhooks",state="scheduled"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "storefront_queue_tasks"))
}
