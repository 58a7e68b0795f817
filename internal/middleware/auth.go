// Package middleware provides HTTP middleware for authentication, authorization,
// rate limiting and request logging.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"redas-backend/internal/ctxkeys"
	"redas-backend/internal/workflow"
)

// Auth validates the JWT token from the Authorization header and
// injects the user's ID and role into the request context.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			// JSON numbers decode as float64.
			rawID, _ := claims["userId"].(float64)
			role, _ := claims["role"].(string)
			userID := int64(rawID)

			if userID <= 0 {
				writeError(w, http.StatusUnauthorized, "Invalid token: missing user ID")
				return
			}
			if !workflow.Role(role).Valid() {
				writeError(w, http.StatusUnauthorized, "Invalid token: unknown role")
				return
			}

			ctx := ctxkeys.WithActor(r.Context(), workflow.Actor{ID: userID, Role: workflow.Role(role)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole restricts access to the listed roles. Roles are matched
// exactly; there is no rank ordering between them.
func RequireRole(roles ...workflow.Role) func(http.Handler) http.Handler {
	allowed := make(map[workflow.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ctxkeys.Actor(r.Context())
			if !ok || !allowed[actor.Role] {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
