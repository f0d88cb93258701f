package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvalente-dev/identity-hub/config"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

func TestAuthenticate(t *testing.T) {
	logger := slog.Default()
	jwtCfg := config.JWTConfig{
		SecretKey: "test-access-secret",
		Issuer:    "test-issuer",
		Audience:  "test-audience",
		TokenTTL:  15 * time.Minute,
	}
	issuer, err := NewTokenIssuer(jwtCfg)
	require.NoError(t, err)

	var gotPrincipal types.Principal
	var principalFound bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal, principalFound = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	guard := Authenticate(logger, issuer, jwtCfg)(next)

	t.Run("MissingAuthorizationHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MalformedAuthorizationHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Token abc123")
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-valid-token")
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Malformed token")
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		shortIssuer, err := NewTokenIssuer(config.JWTConfig{
			SecretKey: jwtCfg.SecretKey,
			Issuer:    jwtCfg.Issuer,
			Audience:  jwtCfg.Audience,
			TokenTTL:  time.Millisecond,
		})
		require.NoError(t, err)
		signed, err := shortIssuer.Issue("user123", "test@example.com")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token has expired")
	})

	t.Run("IssuerMismatch", func(t *testing.T) {
		otherIssuer, err := NewTokenIssuer(config.JWTConfig{
			SecretKey: jwtCfg.SecretKey,
			Issuer:    "another-issuer",
			Audience:  jwtCfg.Audience,
			TokenTTL:  jwtCfg.TokenTTL,
		})
		require.NoError(t, err)
		signed, err := otherIssuer.Issue("user123", "test@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid token issuer")
	})

	t.Run("ValidToken", func(t *testing.T) {
		signed, err := issuer.Issue("user123", "test@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.True(t, principalFound)
		assert.Equal(t, "user123", gotPrincipal.ID)
		assert.Equal(t, "test@example.com", gotPrincipal.Email)
	})
}

func TestPrincipalFromContext(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, ok := PrincipalFromContext(req.Context())
		assert.False(t, ok)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		ctx := WithPrincipal(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
			types.Principal{ID: "user123", Email: "test@example.com"})

		p, ok := PrincipalFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "user123", p.ID)
		assert.Equal(t, "test@example.com", p.Email)

		id, ok := GetUserIDFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, "user123", id)
	})
}
