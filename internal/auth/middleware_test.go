package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Secret: "test-secret", Issuer: "identity", Audience: "checkout"})
	require.NoError(t, err)
	return v
}

func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := common.CustomerID(r.Context())
		admin := "no"
		if common.HasRole(r.Context(), RoleAdmin) {
			admin = "yes"
		}
		_, _ = w.Write([]byte(id + ":" + admin))
	})
}

func TestVerifierRoundTrip(t *testing.T) {
	v := newVerifier(t)
	token, err := v.Issue("cust-1", []string{RoleAdmin}, time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "cust-1", claims.Subject)
	require.Equal(t, []string{RoleAdmin}, claims.Roles)
}

func TestVerifierRejects(t *testing.T) {
	v := newVerifier(t)

	_, err := v.Verify("")
	require.Error(t, err)
	_, err = v.Verify("not-a-token")
	require.Error(t, err)

	other, err := NewVerifier(Config{Secret: "other-secret", Issuer: "identity", Audience: "checkout"})
	require.NoError(t, err)
	forged, err := other.Issue("cust-1", nil, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(forged)
	require.Error(t, err)

	v.WithNow(func() time.Time { return time.Now().Add(-time.Hour) })
	stale, err := v.Issue("cust-1", nil, time.Minute)
	require.NoError(t, err)
	v.WithNow(time.Now)
	_, err = v.Verify(stale)
	require.Error(t, err)

	tok, err := jwt.NewBuilder().Issuer("identity").Audience([]string{"checkout"}).Subject("cust-1").
		Expiration(time.Now().Add(time.Minute)).Build()
	require.NoError(t, err)
	hs512, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("test-secret")))
	require.NoError(t, err)
	_, err = v.Verify(string(hs512))
	require.Error(t, err)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier(Config{Secret: "  "})
	require.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	v := newVerifier(t)
	mw := Middleware{Verifier: v, AccessCookie: "access_token"}
	h := mw.RequireAuth(echoCaller())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := v.Issue("cust-9", nil, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "cust-9:no", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestAuthenticateIsOptional(t *testing.T) {
	mw := Middleware{Verifier: newVerifier(t)}
	rec := httptest.NewRecorder()
	mw.Authenticate(echoCaller()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ":no", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	v := newVerifier(t)
	mw := Middleware{Verifier: v}
	h := mw.RequireAuth(RequireRole(RoleAdmin)(echoCaller()))

	customer, err := v.Issue("cust-1", nil, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer "+customer)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin, err := v.Issue("ops-1", []string{RoleAdmin}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPut, "/admin/settings", nil)
	req.Header.Set("Authorization", "bearer "+admin)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ops-1:yes", rec.Body.String())

	rec = httptest.NewRecorder()
	RequireRole(RoleAdmin)(echoCaller()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
