package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mingmong/internal/common/logging"
	"mingmong/internal/stealth"
)

// readDeadline bounds the wait for the single expected inbound message.
const readDeadline = 5 * time.Second

// PingMessage is the single message a WebSocket caller may send.
type PingMessage struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
}

// PongMessage is the server's reply, for both success and the one allowed
// error frame.
type PongMessage struct {
	Type       string `json:"type"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
	ServerTime string `json:"server_time,omitempty"`
}

// Error codes carried by the WebSocket error frame. This transport is the
// one exception to the silent-rejection rule: it names the failure before
// closing.
const (
	ErrInvalidFormat    = "invalid_format"
	ErrInvalidType      = "invalid_type"
	ErrInvalidSignature = "invalid_signature"
)

// HandleWebSocket upgrades the connection, reads exactly one ping message
// within the read deadline and answers with a pong or a single error frame.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := stealth.ClientIP(r)

	h.logger.Debug("WebSocket connection",
		logging.String("remote_addr", clientIP),
	)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written its refusal.
		h.logger.Warn("WebSocket upgrade failed",
			logging.Err(err),
			logging.String("remote_addr", clientIP),
		)
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

	_, messageBytes, err := conn.ReadMessage()
	if err != nil {
		// Timeout or transport error: drop without a frame.
		h.logger.Warn("WebSocket read failed",
			logging.Err(err),
			logging.String("remote_addr", clientIP),
		)
		return
	}

	var ping PingMessage
	if err := json.Unmarshal(messageBytes, &ping); err != nil {
		h.logger.Warn("WebSocket message malformed",
			logging.String("remote_addr", clientIP),
		)
		h.writeWSError(conn, ErrInvalidFormat)
		return
	}

	if ping.Type != "ping" {
		h.logger.Warn("WebSocket message has wrong type",
			logging.String("type", ping.Type),
			logging.String("remote_addr", clientIP),
		)
		h.writeWSError(conn, ErrInvalidType)
		return
	}

	if !h.validator.IsValid(ping.Signature) {
		h.logger.Warn("WebSocket signature invalid",
			logging.String("signature", ping.Signature),
			logging.String("remote_addr", clientIP),
		)
		h.writeWSError(conn, ErrInvalidSignature)
		return
	}

	h.logger.Info("Valid ping",
		logging.String("transport", "websocket"),
		logging.String("remote_addr", clientIP),
	)

	now := h.timestamp()
	h.writeWS(conn, PongMessage{
		Type:       "pong",
		Status:     "ok",
		Timestamp:  now,
		ServerTime: now,
	})
}

func (h *Handlers) writeWSError(conn *websocket.Conn, code string) {
	h.writeWS(conn, PongMessage{
		Type:      "error",
		Error:     code,
		Timestamp: h.timestamp(),
	})
}

func (h *Handlers) writeWS(conn *websocket.Conn, msg PongMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
