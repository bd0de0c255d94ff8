package handlers

import (
	"net/http"

	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
	"mingmong/internal/stealth"
)

// SignatureHeader carries the token on the HTTP ping transport.
const SignatureHeader = "X-Ping-Signature"

// HandlePing serves the plain HTTP ping. OPTIONS is granted unconditionally
// so browser preflights succeed; everything else needs a valid signature
// header or the connection is severed.
func (h *Handlers) HandlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", SignatureHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodGet {
		h.gate.Reject(w, r, errors.FormatError("method not allowed on ping"))
		return
	}

	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		h.gate.Reject(w, r, errors.AuthError("missing signature header"))
		return
	}

	if !h.validator.IsValid(sig) {
		h.gate.Reject(w, r, errors.AuthError("invalid signature"))
		return
	}

	h.logger.Info("Valid ping",
		logging.String("transport", "http"),
		logging.String("remote_addr", stealth.ClientIP(r)),
	)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
