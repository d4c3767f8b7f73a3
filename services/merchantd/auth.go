package merchantd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const subjectContextKey contextKey = "merchantd.subject"

// AdminClaims are the JWT claims merchantd accepts on the admin API.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RoleAdmin is the capability required for every configuration endpoint.
const RoleAdmin = "admin"

// Authenticator validates bearer tokens on the admin API.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator builds an authenticator over the shared HS256 secret.
func NewAuthenticator(secret string) (*Authenticator, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	return &Authenticator{secret: []byte(trimmed)}, nil
}

// Verify parses and validates a bearer token, returning the subject.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.Role != RoleAdmin {
		return "", fmt.Errorf("%w: role %q", ErrUnauthorized, claims.Role)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return subject, nil
}

// Middleware enforces a valid admin bearer token and stashes the subject in
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeFailure(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		subject, err := a.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		ctx := context.WithValue(r.Context(), subjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext returns the authenticated admin subject, if any.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey).(string)
	return subject
}
