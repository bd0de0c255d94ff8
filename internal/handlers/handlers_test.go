package handlers_test

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mingmong/internal/app"
	"mingmong/internal/common/logging"
	"mingmong/internal/handlers"
	"mingmong/internal/signature"
	"mingmong/internal/stealth"
)

func newTestServer(t *testing.T, tlsActive bool) *httptest.Server {
	t.Helper()

	logger := logging.NewDefaultLogger()
	h := handlers.New(signature.NewValidator(), stealth.NewGate(logger), tlsActive, logger)
	srv := httptest.NewServer(app.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func todayToken() string {
	return signature.Derive(time.Now().UTC())
}

// rawExchange speaks raw TCP so a severed connection is observable as EOF
// with zero response bytes, which an http.Client would mask as an error.
func rawExchange(t *testing.T, srv *httptest.Server, request string) []byte {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, _ := io.ReadAll(conn)
	return data
}

func rawGet(path string, headers ...string) string {
	req := "GET " + path + " HTTP/1.1\r\nHost: test\r\nConnection: close\r\n"
	for _, h := range headers {
		req += h + "\r\n"
	}
	return req + "\r\n"
}

func TestPingOptionsAlwaysAllowed(t *testing.T) {
	srv := newTestServer(t, false)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/ping", nil)
	require.NoError(t, err)
	req.Header.Set(handlers.SignatureHeader, "complete-garbage")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, handlers.SignatureHeader, resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestPingValidSignature(t *testing.T) {
	srv := newTestServer(t, false)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/ping", nil)
	require.NoError(t, err)
	req.Header.Set(handlers.SignatureHeader, todayToken())

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestPingRejectionsAreSilent(t *testing.T) {
	srv := newTestServer(t, false)

	tests := []struct {
		name    string
		request string
	}{
		{"missing header", rawGet("/ping")},
		{"wrong signature", rawGet("/ping", handlers.SignatureHeader+": 0000000000000000")},
		{"stale signature", rawGet("/ping", handlers.SignatureHeader+": "+signature.Derive(time.Now().UTC().AddDate(0, 0, -2)))},
		{"wrong method", "POST /ping HTTP/1.1\r\nHost: test\r\nConnection: close\r\n" + handlers.SignatureHeader + ": " + todayToken() + "\r\nContent-Length: 0\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, rawExchange(t, srv, tt.request), "expected zero response bytes")
		})
	}
}

func TestPixelValidSignature(t *testing.T) {
	srv := newTestServer(t, false)

	resp, err := srv.Client().Get(srv.URL + "/pixel?signature=" + todayToken())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", resp.Header.Get("X-Ping-Status"))
	assert.Equal(t, "no-store, no-cache, must-revalidate", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))
	assert.Equal(t, "0", resp.Header.Get("Expires"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "GIF89a"), "payload must be a GIF")
	assert.Len(t, body, 43)
}

func TestPixelRejectionsAreSilent(t *testing.T) {
	srv := newTestServer(t, false)

	tests := []struct {
		name    string
		request string
	}{
		{"missing signature", rawGet("/pixel")},
		{"wrong signature", rawGet("/pixel?signature=0000000000000000")},
		{"wrong method", "POST /pixel?signature=" + todayToken() + " HTTP/1.1\r\nHost: test\r\nConnection: close\r\nContent-Length: 0\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, rawExchange(t, srv, tt.request))
		})
	}
}

func TestJSONPValidSignature(t *testing.T) {
	srv := newTestServer(t, false)

	resp, err := srv.Client().Get(srv.URL + "/jsonp?signature=" + todayToken() + "&callback=checkAlive")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.HasPrefix(text, `checkAlive({"status":"ok","timestamp":"`), "got %q", text)
	assert.True(t, strings.HasSuffix(text, `"});`), "got %q", text)
}

func TestJSONPDefaultCallbackName(t *testing.T) {
	srv := newTestServer(t, false)

	resp, err := srv.Client().Get(srv.URL + "/jsonp?signature=" + todayToken())
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "callback("))
}

func TestJSONPCallbackEchoedVerbatim(t *testing.T) {
	srv := newTestServer(t, false)

	// The callback name is intentionally not restricted to an identifier.
	raw := "window.x;evil"
	resp, err := srv.Client().Get(srv.URL + "/jsonp?signature=" + todayToken() + "&callback=" + url.QueryEscape(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), raw+"("))
}

func TestJSONPRejectionsAreSilent(t *testing.T) {
	srv := newTestServer(t, false)

	assert.Empty(t, rawExchange(t, srv, rawGet("/jsonp?signature=0000000000000000&callback=cb")))
	assert.Empty(t, rawExchange(t, srv, rawGet("/jsonp?callback=cb")))
}

func TestUnknownPathsAreSilent(t *testing.T) {
	srv := newTestServer(t, false)

	paths := []string{"/admin", "/health", "/ping/extra", "/.env", "/api/routes"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			assert.Empty(t, rawExchange(t, srv, rawGet(path)))
		})
	}

	t.Run("unknown method", func(t *testing.T) {
		req := "DELETE /nowhere HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n"
		assert.Empty(t, rawExchange(t, srv, req))
	})
}

func TestRootWithoutTLSIsSilent(t *testing.T) {
	srv := newTestServer(t, false)

	assert.Empty(t, rawExchange(t, srv, rawGet("/")))
}

func TestRootWithTLSServesAcceptancePage(t *testing.T) {
	srv := newTestServer(t, true)

	resp, err := srv.Client().Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Contains(t, string(body), "Certificate Accepted")
	assert.Contains(t, string(body), fmt.Sprintf("wss://%s/ws", host))
	assert.Contains(t, string(body), fmt.Sprintf("https://%s/ping", host))
}
