package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/peyvandapp/peyvand-backend/internal/services"
)

type contextKey string

const adminIDKey contextKey = "admin_id"

// ExtractSessionToken pulls the admin session token from the
// Authorization header, falling back to the `token` query parameter
// for browser WebSocket clients.
func ExtractSessionToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// RequireAdminSession rejects requests without a valid admin session
// and stores the admin id in the request context. Valid sessions get
// their 7-day timer refreshed as a side effect.
func RequireAdminSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractSessionToken(r)
		if token == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"message":"Session token is required"}`))
			return
		}

		adminID, ok, err := services.ValidateAdminSession(r.Context(), token)
		if err != nil || !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"message":"Invalid or expired session"}`))
			return
		}

		_ = services.RefreshAdminSession(r.Context(), token)

		ctx := context.WithValue(r.Context(), adminIDKey, adminID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminIDFromContext returns the authenticated admin's id, or "" when
// the request did not pass RequireAdminSession.
func AdminIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(adminIDKey).(string)
	return id
}
