package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/feedback-pipeline/internal/usecase"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Claims are the token claims the pipeline requires. Tokens are issued by
// the pilot's identity provider; this service only verifies them.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Auth is a middleware factory that verifies the Bearer token and places
// the authenticated actor on the request context. RBAC decisions happen in
// the use cases; this layer only establishes who is calling.
func Auth(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				logger.Warn("missing bearer token", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: bearer token required", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				logger.Warn("invalid bearer token", "remote_addr", r.RemoteAddr, "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" || claims.TenantID == "" || claims.Role == "" {
				logger.Warn("token missing required claims", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: incomplete token", http.StatusUnauthorized)
				return
			}

			actor := usecase.Actor{
				ID:       claims.Subject,
				Role:     usecase.Role(claims.Role),
				TenantID: claims.TenantID,
			}
			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the authenticated actor placed by Auth.
func ActorFromContext(ctx context.Context) (usecase.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(usecase.Actor)
	return actor, ok
}
