// internal/handlers/stream/stream_handler_test.go
package stream

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func originRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCheckOrigin(t *testing.T) {
	h := NewStreamHandler(nil, nil, nil, nil, nil, "", "", "https://dashboard.example.com", zap.NewNop())

	require.True(t, h.checkOrigin(originRequest("https://dashboard.example.com")))
	require.False(t, h.checkOrigin(originRequest("https://evil.example.com")))
	// non-browser clients send no Origin header
	require.True(t, h.checkOrigin(originRequest("")))
}

func TestCheckOriginWildcard(t *testing.T) {
	h := NewStreamHandler(nil, nil, nil, nil, nil, "", "", "*", zap.NewNop())

	require.True(t, h.checkOrigin(originRequest("https://anywhere.example.com")))
}
