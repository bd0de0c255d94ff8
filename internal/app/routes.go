package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"mingmong/internal/handlers"
	"mingmong/internal/middleware"
)

// NewRouter wires the transport handlers. Unknown paths and disallowed
// methods both land on the stealth catch-all, so the rejection behavior is
// identical no matter how a request misses.
func NewRouter(h *handlers.Handlers) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/ws", h.HandleWebSocket)
	router.HandleFunc("/ping", h.HandlePing)
	router.HandleFunc("/pixel", h.HandlePixel)
	router.HandleFunc("/jsonp", h.HandleJSONP)
	router.HandleFunc("/", h.HandleRoot)

	router.NotFoundHandler = http.HandlerFunc(h.HandleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.HandleNotFound)

	return middleware.LoggingMiddleware(router)
}
