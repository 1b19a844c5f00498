package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"chrome-extension://*", "https://app.pricepilot.example"}

	cases := []struct {
		origin string
		want   bool
	}{
		{"chrome-extension://abcdefghijklmnop", true},
		{"chrome-extension://", true},
		{"https://app.pricepilot.example", true},
		{"https://app.pricepilot.example.evil.example", false},
		{"https://evil.example", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, originAllowed(tc.origin, patterns), "origin %q", tc.origin)
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	router := newTestRouter(&stubVerifier{})

	req := httptest.NewRequest(http.MethodOptions, "/verify", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
