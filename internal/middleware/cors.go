package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// CORS wraps h so browsers on any origin can call the API.
func CORS(h http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", idempotencyHeader}),
		handlers.ExposedHeaders([]string{replayedHeader}),
	)(h)
}
