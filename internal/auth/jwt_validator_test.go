package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, issued, notBefore, exp time.Time) jwt.Token {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"checkout"}).
		Subject("cust-1").
		IssuedAt(issued).
		NotBefore(notBefore).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidator(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := TokenValidator{Issuer: "identity", Audience: "checkout", ClockSkew: time.Second, Algorithm: jwa.HS256}

	t.Run("valid", func(t *testing.T) {
		tok := buildToken(t, "identity", now, now, now.Add(time.Minute))
		require.NoError(t, v.Validate(tok, jwa.HS256, now))
	})
	t.Run("issuer mismatch", func(t *testing.T) {
		tok := buildToken(t, "other", now, now, now.Add(time.Minute))
		require.Error(t, v.Validate(tok, jwa.HS256, now))
	})
	t.Run("expired", func(t *testing.T) {
		tok := buildToken(t, "identity", now.Add(-2*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Minute))
		require.Error(t, v.Validate(tok, jwa.HS256, now))
	})
	t.Run("not yet valid", func(t *testing.T) {
		tok := buildToken(t, "identity", now, now.Add(5*time.Minute), now.Add(10*time.Minute))
		require.Error(t, v.Validate(tok, jwa.HS256, now))
	})
	t.Run("algorithm mismatch", func(t *testing.T) {
		tok := buildToken(t, "identity", now, now, now.Add(time.Minute))
		require.Error(t, v.Validate(tok, jwa.RS256, now))
	})
	t.Run("missing expiry", func(t *testing.T) {
		tok, err := jwt.NewBuilder().Issuer("identity").Audience([]string{"checkout"}).Subject("cust-1").Build()
		require.NoError(t, err)
		require.Error(t, v.Validate(tok, jwa.HS256, now))
	})
}
