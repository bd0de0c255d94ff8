package handlers

import (
	"net/http"

	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
	"mingmong/internal/stealth"
)

// pixelGIF is a 1x1 transparent GIF89a. Loadable from any page via an image
// tag, which sidesteps cross-origin restrictions entirely.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// HandlePixel serves the pixel-beacon transport. The signature travels as a
// query parameter and the status indicator as a response header, since an
// image body cannot carry one.
func (h *Handlers) HandlePixel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.gate.Reject(w, r, errors.FormatError("method not allowed on pixel"))
		return
	}

	sig := r.URL.Query().Get("signature")
	if sig == "" {
		h.gate.Reject(w, r, errors.AuthError("missing signature parameter"))
		return
	}

	if !h.validator.IsValid(sig) {
		h.gate.Reject(w, r, errors.AuthError("invalid signature"))
		return
	}

	h.logger.Info("Valid ping",
		logging.String("transport", "pixel"),
		logging.String("remote_addr", stealth.ClientIP(r)),
	)

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Ping-Status", "ok")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixelGIF)
}
