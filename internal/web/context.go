package web

import (
	"net/http"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/logging"
	"github.com/go-chi/chi/v5"
)

// withRequestMetadata adds the client IP and User-Agent to the request
// context for audit logging. Runs after TrustedRealIP.
func withRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if a, ok := hostOf(ip); ok {
			ip = a
		}
		ctx := core.ContextWithClient(r.Context(), ip, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionContext tags request logs with the session in the URL.
func sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithSession(r.Context(), chi.URLParam(r, "sessionID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
