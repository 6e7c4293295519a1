package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestWriteErrorMapsKnownErrors(t *testing.T) {
	errBoom := errors.New("boom")
	mapper := func(err error) *AppError {
		if errors.Is(err, errBoom) {
			return NewAppError("BOOM", "boom happened", http.StatusConflict, err)
		}
		return nil
	}

	rec := httptest.NewRecorder()
	WriteError(rec, errBoom, mapper)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "BOOM", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	WriteError(rec, NotFound("cart not found"), mapper)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("secret db failure"), mapper)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "INTERNAL", body.Code)
	require.NotContains(t, body.Message, "secret")
}

func TestValidateStructDetails(t *testing.T) {
	type input struct {
		City  string  `json:"city" validate:"required"`
		Price float64 `validate:"gte=0"`
	}
	err := ValidateStruct(input{Price: -1})
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	require.Equal(t, map[string]string{"City": "required", "Price": "gte"}, appErr.Details)

	require.NoError(t, ValidateStruct(input{City: "Rabat"}))
}

func TestIdempotencyReplayAndRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusCreated
	calls := 0
	h := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	send := func(customer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/c1/confirm", nil)
		req.Header.Set("Idempotency-Key", "k1")
		req = req.WithContext(WithCustomerID(req.Context(), customer))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusCreated, send("alice").Code)
	rec := send("alice")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "IDEMPOTENT_REPLAY", decodeError(t, rec).Code)
	require.Equal(t, http.StatusCreated, send("bob").Code)
	require.Equal(t, 2, calls)

	status = http.StatusInternalServerError
	require.Equal(t, http.StatusInternalServerError, send("carol").Code)
	require.Equal(t, http.StatusInternalServerError, send("carol").Code)
	require.Equal(t, 4, calls)
}

func TestAuthContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := CustomerID(req.Context())
	require.False(t, ok)

	ctx := WithRoles(WithCustomerID(req.Context(), "cus_1"), []string{"admin"})
	id, ok := CustomerID(ctx)
	require.True(t, ok)
	require.Equal(t, "cus_1", id)
	require.True(t, HasRole(ctx, "admin"))
	require.False(t, HasRole(ctx, "staff"))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders?page=3&limit=500", nil)
	p := ParsePagination(req, 20, 100)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 100, p.PerPage)
	require.Equal(t, 200, p.Offset())

	req = httptest.NewRequest(http.MethodGet, "/orders?page=-1", nil)
	p = ParsePagination(req, 20, 100)
	require.Equal(t, Pagination{Page: 1, PerPage: 20}, p)
	require.Zero(t, p.Offset())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	require.Equal(t, "10.0.0.1", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	req.Header.Set("X-Real-IP", " 172.16.0.9 ")
	require.Equal(t, "172.16.0.9", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:4431"
	require.Equal(t, "2001:db8::1", ClientIP(req))
	require.Empty(t, ClientIP(nil))
}

func TestHashKeyJoinsParts(t *testing.T) {
	require.Len(t, HashKey("a"), 64)
	require.Equal(t, HashKey("a|b"), HashKey("a", "b"))
	require.NotEqual(t, HashKey("a", "b"), HashKey("b", "a"))
}
