package middleware

import (
	"context"
	"net/http"
	"strings"
	"whiteboard-complete/handlers/auth"

	"github.com/go-chi/render"
)

// AuthJWT authenticates the request from either an
// "Authorization: Bearer" header or the "token" cookie set at login,
// and stores the parsed claims in the request context. The resolved
// subject is the actor id every permission check runs against.
func AuthJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(auth.TokenCookieName); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authentication required"})
			return
		}

		claims, err := auth.ParseJWT(tokenString)
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), auth.ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthJWT attaches claims when the request carries a valid
// token and otherwise lets it through anonymously. Used on routes that
// serve public boards, where the capability set decides per board.
func OptionalAuthJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(auth.TokenCookieName); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString != "" {
			if claims, err := auth.ParseJWT(tokenString); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), auth.ClaimsContextKey, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
