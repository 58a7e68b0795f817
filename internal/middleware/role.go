package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"redas-backend/internal/ctxkeys"
	"redas-backend/internal/models"
	"redas-backend/internal/repository"
)

// UserLookup reads the stored user behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// CurrentRole replaces the role carried in the token with the user's stored
// role, so a role change applies from the next request rather than at token
// expiry. A token for a user that no longer exists is rejected. Mount after
// Auth.
func CurrentRole(users UserLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ctxkeys.Actor(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			u, err := users.GetByID(r.Context(), actor.ID)
			if errors.Is(err, repository.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "Invalid token: user not found")
				return
			}
			if err != nil {
				log.Error("resolve current role", zap.Int64("user_id", actor.ID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Failed to resolve user")
				return
			}

			if u.Role != actor.Role {
				actor.Role = u.Role
				r = r.WithContext(ctxkeys.WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}
