package server

import (
	"net/http"

	"go.uber.org/zap"
)

// loggingMiddleware shims in a handler middleware that logs requests.
func loggingMiddleware(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debugw("request", "method", r.Method, "uri", r.RequestURI, "length", r.ContentLength)
			next.ServeHTTP(w, r)
		})
	}
}
