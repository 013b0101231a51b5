package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/qualitax/backend/src/database"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
	"github.com/username/qualitax/backend/src/utils"
)

// Unexported context key type to avoid collisions with other packages.
type contextKey string

const (
	userIDContextKey contextKey = "userID"
	roleContextKey   contextKey = "role"
)

func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		userIDStr, role, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		userIDInt, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			logger.L.Error("AuthMiddleware: Invalid user ID format in token", "userIDStr", userIDStr, "error", err)
			utils.SendJSONError(w, "Invalid user ID in token", http.StatusInternalServerError)
			return
		}

		if _, err = models.GetSessionByToken(database.DB, tokenString); err != nil {
			// Google-authenticated tokens have no local session row; only
			// local accounts require one.
			user, userErr := models.GetUserByID(database.DB, userIDInt)
			if userErr != nil {
				utils.SendJSONError(w, "Invalid session or user", http.StatusUnauthorized)
				return
			}
			if user.AuthProvider == "local" {
				logger.L.Warn("AuthMiddleware: Session validation failed for local user", "path", r.URL.Path, "error", err)
				utils.SendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userIDInt)
		ctx = context.WithValue(ctx, roleContextKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route on the role claim. A mismatch is a deny, never
// a partial result.
func RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actual, ok := GetRoleFromContext(r.Context())
		if !ok || actual != role {
			logger.L.Warn("Role check failed", "path", r.URL.Path, "required", role, "actual", actual)
			utils.SendJSONError(w, "forbidden: insufficient role", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// GetUserIDFromContext retrieves the authenticated user id.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// GetRoleFromContext retrieves the authenticated user's role claim.
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey).(string)
	return role, ok
}
