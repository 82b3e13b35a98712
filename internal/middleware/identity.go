// Package middleware holds the HTTP middleware shared by every gateway route.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"jaterm_gateway/internal/auth"
	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	identityKey   ContextKey = "identity"
	callerSlotKey ContextKey = "callerSlot"
)

// Identity is the authenticated caller
type Identity struct {
	UserID string
	Role   models.Role
}

// IdentityMiddleware validates the Bearer identity token and, when minRoles
// are given, requires the caller's role to reach at least one of them
func IdentityMiddleware(secret []byte, minRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			claims, err := auth.ParseIdentityToken(secret, strings.TrimSpace(token))
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if !auth.HasAnyPermission(claims.Role, minRoles...) {
				utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			id := Identity{UserID: claims.UserID, Role: claims.Role}
			if slot, ok := r.Context().Value(callerSlotKey).(*Identity); ok {
				*slot = id
			}
			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores id in ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity retrieves the caller set by IdentityMiddleware
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func withCallerSlot(ctx context.Context, slot *Identity) context.Context {
	return context.WithValue(ctx, callerSlotKey, slot)
}
