package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apperrors "github.com/smartbond/middleware/pkg/app/errors"
	apphttp "github.com/smartbond/middleware/pkg/app/http"
	"github.com/smartbond/middleware/pkg/config"
)

// Roles carried in the "role" claim of API tokens.
const (
	RoleIssuer   = "issuer"
	RoleInvestor = "investor"
)

type contextKey string

const roleContextKey contextKey = "role"

// RoleFromContext returns the authenticated role, or "" when the request was
// not authenticated (auth disabled).
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleContextKey).(string)
	return role
}

// Authenticator validates the Bearer token on every request and stores the
// role claim in the request context. With no JWT secret configured the
// middleware passes requests through unauthenticated, for local development
// only.
func Authenticator(cfg *config.AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if cfg == nil || cfg.JWTSecret == "" {
		logger.Warn("API authentication DISABLED (no jwt_secret configured)")
		return func(next http.Handler) http.Handler { return next }
	}

	secret := []byte(cfg.JWTSecret)
	issuer := cfg.Issuer

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := validateBearer(r, secret, issuer)
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid or missing token"))
				return
			}

			role, _ := claims["role"].(string)
			ctx := context.WithValue(r.Context(), roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose role claim does not match.
// Requests that skipped authentication entirely (dev mode) are allowed.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := RoleFromContext(r.Context())
			if got != "" && got != role {
				err := fmt.Errorf("role %q cannot access this resource", got)
				apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(err, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validateBearer(r *http.Request, secret []byte, issuer string) (jwt.MapClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}

	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("authorization header is not a Bearer token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	if issuer != "" {
		iss, ok := claims["iss"].(string)
		if !ok || iss != issuer {
			return nil, fmt.Errorf("invalid issuer")
		}
	}

	return claims, nil
}
