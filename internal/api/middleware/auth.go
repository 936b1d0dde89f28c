package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/marniemm/jobsvc/internal/api/response"
	"github.com/marniemm/jobsvc/internal/store"
)

const keyPrefixLen = 8

// Auth provides authentication and role-checking middleware.
type Auth struct {
	store store.Store
}

func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer API key, resolves its owning user with
// role flags, and sets the user and key prefix in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawKey) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Invalid API key format", nil)
			return
		}

		prefix := rawKey[:keyPrefixLen]

		keys, err := a.store.GetAPIKeysByPrefix(r.Context(), prefix)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) != nil {
				continue
			}

			user, err := a.store.GetUser(r.Context(), key.UserID)
			if err != nil {
				response.Error(w, http.StatusUnauthorized,
					"UNAUTHORIZED", "Invalid API key", nil)
				return
			}

			ctx := SetUser(r.Context(), user)
			ctx = setKeyPrefix(ctx, prefix)

			// Update last_used_at async
			go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		response.Error(w, http.StatusUnauthorized,
			"UNAUTHORIZED", "Invalid API key", nil)
	})
}

// RequireAdmin returns middleware that restricts a route to admin users.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r)
		if !ok || !user.IsAdmin {
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
