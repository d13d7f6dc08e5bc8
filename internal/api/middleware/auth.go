package middleware

import (
	"amortization-engine/internal/config"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const subjectKey contextKey = "auth.subject"

// SubjectFromContext returns the username of an authenticated request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}

func AuthMiddleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := validateJWT(r, cfg.JWTSecret, logger)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, subject)))
		})
	}
}

func validateJWT(r *http.Request, secret string, logger *slog.Logger) (string, bool) {
	ctx := r.Context()
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		logger.WarnContext(ctx, "AuthMiddleware: Missing Authorization header")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		logger.WarnContext(ctx, "AuthMiddleware: Invalid Authorization header format")
		return "", false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		logger.WarnContext(ctx, "AuthMiddleware: Invalid token", "error", err)
		return "", false
	}

	username, _ := claims["username"].(string)
	logger.DebugContext(ctx, "AuthMiddleware: Authenticated request", "username", username)
	return username, true
}
