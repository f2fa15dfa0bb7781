// Package middleware provides HTTP middleware for authentication and request
// logging.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// actorIDKey is the context key for the authenticated recruiter or service.
const actorIDKey ContextKey = "actorID"

// TokenValidator validates bearer tokens. It lets the middleware work with
// any token service without importing it.
type TokenValidator interface {
	ValidateToken(tokenString string) (ActorIDGetter, error)
}

// ActorIDGetter extracts the acting principal from token claims.
type ActorIDGetter interface {
	GetActorID() uuid.UUID
}

// AuthMiddleware creates middleware that validates bearer tokens and adds
// the actor ID to the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// "Bearer" is matched case-insensitively
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), actorIDKey, claims.GetActorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActorID extracts the authenticated actor ID from the request context.
func GetActorID(r *http.Request) (uuid.UUID, error) {
	actorID, ok := r.Context().Value(actorIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("actor ID not found in request context")
	}
	return actorID, nil
}

// ActorIDKey returns the context key for the actor ID (for testing purposes).
func ActorIDKey() ContextKey {
	return actorIDKey
}
