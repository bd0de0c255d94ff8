// Package stealth implements the silent-rejection behavior shared by every
// HTTP transport. A rejected caller receives no status line and no bytes;
// the underlying TCP connection is closed as if no service were listening.
package stealth

import (
	"net"
	"net/http"
	"strings"

	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
)

// RawCloser grants raw ownership of a connection's socket, bypassing the
// HTTP library's response-writing path.
type RawCloser interface {
	CloseRaw() error
}

// DetachFunc detaches a live connection from its ResponseWriter.
type DetachFunc func(http.ResponseWriter) (RawCloser, error)

// hijackedConn closes a connection obtained through http.Hijacker.
type hijackedConn struct {
	conn net.Conn
}

func (h hijackedConn) CloseRaw() error {
	return h.conn.Close()
}

// HijackDetach detaches via the serving layer's http.Hijacker capability.
func HijackDetach(w http.ResponseWriter) (RawCloser, error) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, errors.InternalError("response writer does not support hijacking", nil)
	}

	conn, _, err := hijacker.Hijack()
	if err != nil {
		return nil, errors.InternalError("connection hijack failed", err)
	}

	return hijackedConn{conn: conn}, nil
}

// Gate terminates connections for requests that fail validation. Every
// non-success path of every transport, including unknown routes, goes
// through Reject so the behavior is uniform.
type Gate struct {
	logger logging.Logger
	detach DetachFunc
}

// NewGate creates a gate backed by connection hijacking.
func NewGate(logger logging.Logger) *Gate {
	return NewGateWithDetach(logger, HijackDetach)
}

// NewGateWithDetach creates a gate with an injected detach capability,
// allowing tests to substitute a fake.
func NewGateWithDetach(logger logging.Logger, detach DetachFunc) *Gate {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Gate{logger: logger, detach: detach}
}

// Reject severs the caller's connection without writing a response. The
// cause and origin address are logged server-side only.
func (g *Gate) Reject(w http.ResponseWriter, r *http.Request, cause error) {
	g.logger.Warn("Request rejected",
		logging.String("reason", string(errors.GetType(cause))),
		logging.Err(cause),
		logging.String("remote_addr", ClientIP(r)),
		logging.String("method", r.Method),
		logging.String("path", r.URL.Path),
	)

	rc, err := g.detach(w)
	if err != nil {
		// No hijack support (e.g. HTTP/2). Abort the handler so the server
		// still drops the connection without a response body.
		panic(http.ErrAbortHandler)
	}

	_ = rc.CloseRaw()
}

// ClientIP extracts the originating address for logging, preferring proxy
// headers over the socket peer.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
