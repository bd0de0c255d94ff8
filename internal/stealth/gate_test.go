package stealth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
	"mingmong/internal/stealth"
)

// fakeCloser records whether the raw connection was closed.
type fakeCloser struct {
	closed bool
}

func (f *fakeCloser) CloseRaw() error {
	f.closed = true
	return nil
}

func TestRejectClosesRawConnection(t *testing.T) {
	closer := &fakeCloser{}
	gate := stealth.NewGateWithDetach(logging.NewDefaultLogger(), func(http.ResponseWriter) (stealth.RawCloser, error) {
		return closer, nil
	})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pixel", nil)

	gate.Reject(recorder, req, errors.AuthError("invalid signature"))

	assert.True(t, closer.closed, "raw connection must be closed")
	assert.Empty(t, recorder.Body.Bytes(), "no response bytes may be written")
}

func TestRejectAbortsWhenDetachUnsupported(t *testing.T) {
	gate := stealth.NewGateWithDetach(logging.NewDefaultLogger(), func(http.ResponseWriter) (stealth.RawCloser, error) {
		return nil, errors.InternalError("no hijack support", nil)
	})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/unknown", nil)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		gate.Reject(recorder, req, errors.UnknownRouteError("/unknown"))
	})
	assert.Empty(t, recorder.Body.Bytes())
}

func TestHijackDetachRequiresHijacker(t *testing.T) {
	// httptest.ResponseRecorder does not implement http.Hijacker.
	_, err := stealth.HijackDetach(httptest.NewRecorder())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "socket peer",
			remoteAddr: "203.0.113.7:51234",
			expected:   "203.0.113.7",
		},
		{
			name:       "x-real-ip wins",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			expected:   "198.51.100.9",
		},
		{
			name:       "first forwarded hop",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "192.0.2.4, 10.0.0.2"},
			expected:   "192.0.2.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, stealth.ClientIP(req))
		})
	}
}
