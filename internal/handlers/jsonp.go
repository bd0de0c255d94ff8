package handlers

import (
	"fmt"
	"net/http"

	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
	"mingmong/internal/stealth"
)

// HandleJSONP serves the JSONP transport: the response is executable script
// content invoking the caller-supplied callback.
//
// The callback name is echoed verbatim without character restriction. That
// is a script-injection exposure kept for compatibility with existing
// callers; see DESIGN.md.
func (h *Handlers) HandleJSONP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.gate.Reject(w, r, errors.FormatError("method not allowed on jsonp"))
		return
	}

	query := r.URL.Query()

	sig := query.Get("signature")
	if sig == "" {
		h.gate.Reject(w, r, errors.AuthError("missing signature parameter"))
		return
	}

	if !h.validator.IsValid(sig) {
		h.gate.Reject(w, r, errors.AuthError("invalid signature"))
		return
	}

	callback := query.Get("callback")
	if callback == "" {
		callback = "callback"
	}

	h.logger.Info("Valid ping",
		logging.String("transport", "jsonp"),
		logging.String("remote_addr", stealth.ClientIP(r)),
	)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `%s({"status":"ok","timestamp":"%s"});`, callback, h.timestamp())
}
