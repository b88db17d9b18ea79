package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type key string

const UserIDKey key = "user_id"

// GetUserID returns the authenticated user id placed in the context by JWTMiddleware.
func GetUserID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(UserIDKey).(int)
	return id, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

// JWTMiddleware accepts HMAC-signed bearer tokens carrying a numeric user_id claim.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || tokenStr == "" {
				unauthorized(w, "invalid authorization header")
				return
			}

			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				unauthorized(w, "invalid token claims")
				return
			}
			uid, ok := claims["user_id"].(float64)
			if !ok {
				unauthorized(w, "invalid token claims")
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, int(uid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
