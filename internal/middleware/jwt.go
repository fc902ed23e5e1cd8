package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type key string

// OwnerIDKey holds the authenticated coach's id in the request context.
const OwnerIDKey key = "coach_id"

// OwnerID returns the coach id stored by JWTMiddleware.
func OwnerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OwnerIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// WithOwnerID returns a copy of ctx carrying id, as JWTMiddleware does.
func WithOwnerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, OwnerIDKey, id)
}

// writeError writes the API's {"error": message} body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

// JWTMiddleware verifies an HMAC-signed bearer token issued by the coaching
// platform and stores its coach_id claim (falling back to sub) in the context.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, "invalid authorization header")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}

			raw, _ := claims["coach_id"].(string)
			if raw == "" {
				raw, _ = claims["sub"].(string)
			}
			ownerID, err := uuid.Parse(raw)
			if err != nil || ownerID == uuid.Nil {
				unauthorized(w, "invalid token claims")
				return
			}

			recordOwner(r.Context(), ownerID)
			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}
