package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tasknote-backend/application/services"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/valueobjects"
	"tasknote-backend/pkg/auth"
	"tasknote-backend/pkg/common"
	pkgerrors "tasknote-backend/pkg/errors"
)

type userContextKey string

const currentUserKey userContextKey = "currentUser"

// CurrentUser returns the authenticated domain user placed in the context by
// Authenticate.
func CurrentUser(ctx context.Context) (*entities.User, error) {
	user, ok := ctx.Value(currentUserKey).(*entities.User)
	if !ok || user == nil {
		return nil, pkgerrors.NewUnauthorizedError("no authenticated user")
	}
	return user, nil
}

// Authenticate validates the bearer token, maps the token's issuer to an
// identity provider, and resolves the domain user. A first-seen identity is
// registered on the fly; returning users are matched by the provider's
// subject id.
func Authenticate(validator *auth.JWTValidator, users *services.UserService, logger *zap.Logger) func(next http.Handler) http.Handler {
	ipLimiter := auth.NewIPRateLimiter(100)
	userLimiter := auth.NewUserRateLimiter(200)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			allowed, _ := ipLimiter.Allow(r.Context(), clientIP)
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			token := extractToken(r)
			if token == "" {
				respondUnauthorized(w, "Missing authentication token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("invalid token",
					zap.Error(err),
					zap.String("ip", clientIP),
					zap.String("path", r.URL.Path),
				)
				switch err {
				case auth.ErrExpiredToken:
					respondUnauthorized(w, "Token has expired")
				case auth.ErrInvalidSignature:
					respondUnauthorized(w, "Invalid token signature")
				default:
					respondUnauthorized(w, "Invalid token")
				}
				return
			}

			allowed, _ = userLimiter.Allow(r.Context(), claims.UserID)
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "User rate limit exceeded")
				return
			}

			user, err := resolveUser(r.Context(), users, claims)
			if err != nil {
				logger.Warn("user resolution failed",
					zap.Error(err),
					zap.String("issuer", claims.Issuer),
				)
				respondUnauthorized(w, "Could not resolve user identity")
				return
			}

			userCtx := &auth.UserContext{
				UserID: claims.UserID,
				Name:   claims.Name,
				Email:  claims.Email,
				Issuer: claims.Issuer,
			}
			ctx := auth.SetUserInContext(r.Context(), userCtx)
			ctx = context.WithValue(ctx, currentUserKey, user)
			ctx = common.WithUserID(ctx, user.RowKey)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveUser matches the token identity to a stored user, registering it on
// first sight.
func resolveUser(ctx context.Context, users *services.UserService, claims *auth.Claims) (*entities.User, error) {
	user, err := users.GetByUniqueIdentifier(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	provider, ok := valueobjects.ProviderFromIssuer(claims.Issuer)
	if !ok {
		return nil, pkgerrors.NewUnauthorizedError("unknown identity provider")
	}
	return users.Register(ctx, claims.UserID, claims.Name, claims.Email, provider)
}

// extractToken extracts the JWT token from multiple sources
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
		return authHeader
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// respondUnauthorized sends an unauthorized response
func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, message)
}

// respondWithError sends an error response with a specific status code
func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    code,
	})
}
