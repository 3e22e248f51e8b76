package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"bursar/internal/transport/http/api"
)

// PermissionStore answers whether a role grants a permission.
// auth.StaticPermissions is the production implementation.
type PermissionStore interface {
	HasPermission(ctx context.Context, roleName, permission string) (bool, error)
}

func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return RequireAnyPermission(store, permission)
}

// RequireAnyPermission admits the request when the caller's role grants at
// least one of permissions.
func RequireAnyPermission(store PermissionStore, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}

			for _, permission := range permissions {
				allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
				if err != nil {
					log.Error().Err(err).Str("request_id", requestID).Str("permission", permission).Msg("permission check failed")
					api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
					return
				}
				if allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Info().
				Str("request_id", requestID).
				Str("user_id", user.UserID).
				Str("role", user.RoleName).
				Strs("required", permissions).
				Msg("permission denied")
			api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
		})
	}
}
