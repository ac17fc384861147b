package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/opsdeck/authguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_ForwardedForFirstEntry(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.0.0.1:54321"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	assert.Equal(t, "203.0.113.7", pkghttp.ExtractClientIP(r))
}

func TestExtractClientIP_SkipsInvalidForwardedEntries(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.0.0.1:54321"
	r.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.4")

	assert.Equal(t, "198.51.100.4", pkghttp.ExtractClientIP(r))
}

func TestExtractClientIP_RealIPFallback(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.0.0.1:54321"
	r.Header.Set("X-Real-IP", "192.0.2.10")

	assert.Equal(t, "192.0.2.10", pkghttp.ExtractClientIP(r))
}

func TestExtractClientIP_RemoteAddrFallback(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.0.0.1:54321"

	assert.Equal(t, "10.0.0.1", pkghttp.ExtractClientIP(r))
}

func TestExtractClientIP_RemoteAddrWithoutPort(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.0.0.9"

	assert.Equal(t, "10.0.0.9", pkghttp.ExtractClientIP(r))
}

func TestWriteBlocked_SetsRetryAfterHeaderAndPayload(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteBlocked(w, 3600, "Too many failed attempts")

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"retryAfter":3600`)
	assert.Contains(t, w.Body.String(), `"code":"too_many_attempts"`)
}
