package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"quizmaster/internal/models"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/mux"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "role"
)

// UserID returns the authenticated user's id from the request context.
func UserID(r *http.Request) (uint, bool) {
	id, ok := r.Context().Value(ctxUserID).(uint)
	return id, ok
}

// Role returns the authenticated role from the request context.
func Role(r *http.Request) string {
	role, _ := r.Context().Value(ctxRole).(string)
	return role
}

// JWTMiddleware validates the bearer token and stashes (user id, role) on
// the request context.
func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.ParseWithClaims(bearerToken[1], &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			})
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*jwt.MapClaims)
			if !ok || !token.Valid {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			sub, ok := (*claims)["sub"].(float64)
			if !ok {
				http.Error(w, "Invalid subject in token", http.StatusUnauthorized)
				return
			}
			role, _ := (*claims)["role"].(string)

			ctx := context.WithValue(r.Context(), ctxUserID, uint(sub))
			ctx = context.WithValue(ctx, ctxRole, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose token carries a different role.
// Ownership checks stay in the services; this only gates the role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Role(r) != role {
				http.Error(w, "Access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelf gates student routes carrying an {id} path segment: the token
// must belong to that student. Admin tokens never pass; student-owned
// resources are only readable by their owner.
func RequireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Role(r) != models.RoleStudent {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, "Invalid student id", http.StatusBadRequest)
			return
		}
		userID, ok := UserID(r)
		if !ok || uint(id) != userID {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
