/*
auth.go - Bearer-token authentication for the API

PURPOSE:
  Every /api route needs the id of the calling user; all data is scoped by
  it. Sessions are issued by an external identity service, so this package
  only VERIFIES tokens. The Authenticator interface is what handlers depend
  on; JWTAuthenticator is the HS256 implementation the server wires in.

FLOW:
  Authorization: Bearer <jwt>
    -> Authenticator.Authenticate -> user id
    -> stored in the request context (UserFrom)
    -> 401 when missing, malformed, expired or signed with another key

TOKEN ISSUING:
  IssueToken exists for local development and tests. Production tokens come
  from the identity service sharing the same secret and issuer.

SEE ALSO:
  - server.go: RequireUser wraps the /api group
  - config/config.go: AuthConfig
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/designersquare/bookkeeping/logger"
)

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token has expired")
)

// Authenticator resolves a request's bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// Claims are the JWT claims the server reads. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 tokens from one issuer.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTAuthenticator creates an authenticator. ttl only affects IssueToken.
func NewJWTAuthenticator(secret, issuer string, ttl time.Duration) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Authenticate validates the token and returns its subject.
func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	},
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// IssueToken signs a token for userID.
func (a *JWTAuthenticator) IssueToken(userID string) (string, error) {
	now := a.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type userKey struct{}

// RequireUser rejects requests without a valid bearer token and stores the
// user id in the request context.
func RequireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err == nil {
				var userID string
				userID, err = auth.Authenticate(r.Context(), token)
				if err == nil {
					ctx := WithUser(r.Context(), userID)
					ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("user_id", userID)))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="bookkeeping"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized", err)
		})
	}
}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the authenticated user id, "" outside RequireUser.
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
