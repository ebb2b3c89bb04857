package daemon

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// requireBearer wraps a handler with bearer-token checks. An empty token
// disables authentication entirely and the handler is returned untouched;
// otherwise requests must carry "Authorization: Bearer <token>".
func requireBearer(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
		if !ok || presented != token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
