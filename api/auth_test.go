package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	auth := NewJWTAuthenticator("secret", "bookkeeping", time.Hour)

	token, err := auth.IssueToken("user-42")
	require.NoError(t, err)

	userID, err := auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	issuer := NewJWTAuthenticator("secret", "bookkeeping", time.Hour)

	t.Run("expired", func(t *testing.T) {
		// GIVEN: a token issued two hours ago with a one hour ttl
		past := NewJWTAuthenticator("secret", "bookkeeping", time.Hour)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.IssueToken("user-1")
		require.NoError(t, err)

		_, err = issuer.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTAuthenticator("other-secret", "bookkeeping", time.Hour)
		token, err := other.IssueToken("user-1")
		require.NoError(t, err)

		_, err = issuer.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTAuthenticator("secret", "someone-else", time.Hour)
		token, err := other.IssueToken("user-1")
		require.NoError(t, err)

		_, err = issuer.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no subject", func(t *testing.T) {
		token, err := issuer.IssueToken("")
		require.NoError(t, err)

		_, err = issuer.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:  "bookkeeping",
			Subject: "user-1",
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = issuer.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Issuer:    "bookkeeping",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

type staticAuth map[string]string

func (s staticAuth) Authenticate(_ context.Context, token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", ErrInvalidToken
}

func TestRequireUser(t *testing.T) {
	var seen string
	handler := RequireUser(staticAuth{"good": "user-7"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer good", http.StatusNoContent},
		{"lowercase scheme", "bearer good", http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"empty token", "Bearer  ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "user-7", seen)
			} else {
				assert.Empty(t, seen)
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}
