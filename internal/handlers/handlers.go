// Package handlers implements the four ping transports (WebSocket, HTTP
// header, pixel beacon, JSONP) plus the TLS root page. All transports share
// one signature validator; all failure paths route through the stealth gate.
package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mingmong/internal/common/logging"
	"mingmong/internal/signature"
	"mingmong/internal/stealth"
)

// Handlers holds the request handlers and their shared dependencies.
type Handlers struct {
	validator *signature.Validator
	gate      *stealth.Gate
	logger    logging.Logger
	upgrader  websocket.Upgrader
	tlsActive bool
	now       func() time.Time
}

// New creates the handler set. tlsActive controls whether the root page is
// served; it is fixed at startup and never mutated afterwards.
func New(validator *signature.Validator, gate *stealth.Gate, tlsActive bool, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Handlers{
		validator: validator,
		gate:      gate,
		logger:    logger,
		upgrader: websocket.Upgrader{
			// The beacon transports are designed to be reachable from any
			// page; the WebSocket transport matches them.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		tlsActive: tlsActive,
		now:       time.Now,
	}
}

// timestamp formats the current UTC time the way every transport reports it.
func (h *Handlers) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}
