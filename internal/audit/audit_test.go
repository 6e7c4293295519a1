package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

type memStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (m *memStore) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) List(_ context.Context, limit, offset int) ([]Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.entries) {
		return []Entry{}, len(m.entries), nil
	}
	end := min(offset+limit, len(m.entries))
	return m.entries[offset:end], len(m.entries), nil
}

func newAuditRouter(svc *Service, onError func(error)) http.Handler {
	rec := Recorder{Service: svc, OnError: onError}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithCustomerID(req.Context(), "admin-1")))
		})
	})
	r.With(rec.Middleware("coupons", "id")).Delete("/admin/coupons/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(rec.Middleware("settings", "")).Get("/admin/settings", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.With(rec.Middleware("settings", "")).Patch("/admin/settings", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	return r
}

func TestRecorderAuditsWrites(t *testing.T) {
	store := &memStore{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{Store: store, Log: zerolog.Nop(), Now: func() time.Time { return now }}
	h := newAuditRouter(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/admin/coupons/c-42", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/admin/settings", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))

	require.Len(t, store.entries, 2)
	first := store.entries[0]
	require.Equal(t, "admin-1", first.ActorID)
	require.Equal(t, "DELETE /admin/coupons/{id}", first.Action)
	require.Equal(t, "coupons", first.Resource)
	require.Equal(t, "c-42", first.ResourceID)
	require.Equal(t, http.StatusNoContent, first.Status)
	require.NotEmpty(t, first.RequestID)
	require.Equal(t, now, first.CreatedAt)

	second := store.entries[1]
	require.Equal(t, http.StatusOK, second.Status)
	require.Empty(t, second.ResourceID)
}

func TestRecorderFailureDoesNotAffectResponse(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	var got error
	h := newAuditRouter(&Service{Store: store, Log: zerolog.Nop()}, func(err error) { got = err })

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/admin/coupons/c-1", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.EqualError(t, got, "db down")
}

func TestServiceRecordDefaults(t *testing.T) {
	store := &memStore{}
	svc := &Service{Store: store}
	require.NoError(t, svc.Record(context.Background(), Entry{Method: "put", Path: "/x"}))
	e := store.entries[0]
	require.Equal(t, "PUT /x", e.Action)
	require.Equal(t, "anonymous", e.ActorID)
	require.False(t, e.CreatedAt.IsZero())
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", e.ID.String())
}

func TestHandlerListPaginates(t *testing.T) {
	store := &memStore{}
	svc := &Service{Store: store}
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(context.Background(), Entry{Method: "POST", Path: "/admin/coupons"}))
	}
	h := &Handler{Svc: svc}
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/admin/audit?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data       []Entry           `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, 3, body.Pagination.TotalItems)
	require.Equal(t, 2, body.Pagination.Page)
}
