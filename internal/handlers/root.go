package handlers

import (
	"net/http"
	"strings"

	"mingmong/internal/common/errors"
)

const certAcceptedPage = `<!DOCTYPE html>
<html>
<head>
    <title>Ming-Mong Server - Certificate Accepted</title>
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
        .container { max-width: 600px; margin: 0 auto; }
        .success { color: #28a745; }
        .info { color: #17a2b8; }
    </style>
</head>
<body>
    <div class="container">
        <h1 class="success">Ming-Mong Server</h1>
        <h2>Certificate Accepted Successfully!</h2>
        <p class="info">Your browser now trusts this server's certificate.</p>
        <p>WebSocket endpoint: <strong>wss://{{host}}/ws</strong></p>
        <p>HTTP endpoint: <strong>https://{{host}}/ping</strong></p>
        <p>You can now close this tab and use HTTPS/WSS connections.</p>
        <hr>
        <p><small>This server is running with TLS encryption enabled.</small></p>
    </div>
</body>
</html>`

// HandleRoot serves the certificate-acceptance page when TLS is active. Its
// only purpose is to let a browser durably accept a self-signed certificate.
// Without TLS there is nothing to accept, so the path behaves like any other
// unknown one.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && r.Method == http.MethodGet && h.tlsActive {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.ReplaceAll(certAcceptedPage, "{{host}}", r.Host)))
		return
	}

	h.gate.Reject(w, r, errors.UnknownRouteError(r.URL.Path))
}

// HandleNotFound severs the connection for every path outside the defined
// set, under any method.
func (h *Handlers) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.gate.Reject(w, r, errors.UnknownRouteError(r.URL.Path))
}
