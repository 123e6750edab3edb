package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID assigns every request an X-Request-ID unless the client sent
// one. The id is set on the request headers too, so downstream error
// responses can echo it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set("X-Request-ID", requestID)
		}

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}
