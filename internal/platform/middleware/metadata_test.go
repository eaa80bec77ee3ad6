package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientMetadata(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")}

	tests := []struct {
		name       string
		trusted    []netip.Prefix
		headers    map[string]string
		remoteAddr string
		expectedIP string
		expectedUA string
	}{
		{
			name:    "trusted proxy forwards X-Forwarded-For",
			trusted: trusted,
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1, 198.51.100.1",
				"User-Agent":      "Mozilla/5.0",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "203.0.113.1",
			expectedUA: "Mozilla/5.0",
		},
		{
			name:    "direct client cannot spoof via X-Forwarded-For",
			trusted: nil,
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1",
				"User-Agent":      "Mozilla/5.0",
			},
			remoteAddr: "198.51.100.7:12345",
			expectedIP: "198.51.100.7",
			expectedUA: "Mozilla/5.0",
		},
		{
			name:    "X-Real-IP honored from trusted proxy",
			trusted: trusted,
			headers: map[string]string{
				"X-Real-IP":  "203.0.113.2",
				"User-Agent": "curl/7.64.1",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "203.0.113.2",
			expectedUA: "curl/7.64.1",
		},
		{
			name:    "falls back to RemoteAddr",
			trusted: trusted,
			headers: map[string]string{
				"User-Agent": "test-agent",
			},
			remoteAddr: "192.168.1.100:54321",
			expectedIP: "192.168.1.100",
			expectedUA: "test-agent",
		},
		{
			name:       "handles missing user agent",
			trusted:    nil,
			headers:    map[string]string{},
			remoteAddr: "10.0.0.1:8080",
			expectedIP: "10.0.0.1",
			expectedUA: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedCtx context.Context
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capturedCtx = r.Context()
				w.WriteHeader(http.StatusOK)
			})

			handler := ClientMetadata(tt.trusted)(testHandler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedIP, GetClientIP(capturedCtx), "IP address mismatch")
			assert.Equal(t, tt.expectedUA, GetUserAgent(capturedCtx), "User-Agent mismatch")
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("192.168.1.0/24"),
		netip.MustParsePrefix("::1/128"),
	}

	tests := []struct {
		name       string
		trusted    []netip.Prefix
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:    "single IP in X-Forwarded-For behind trusted proxy",
			trusted: trusted,
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "203.0.113.1",
		},
		{
			name:    "first hop wins in X-Forwarded-For chain",
			trusted: trusted,
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1, 198.51.100.1, 192.0.2.1",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "203.0.113.1",
		},
		{
			name:    "X-Forwarded-For ignored from untrusted peer",
			trusted: trusted,
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1",
			},
			remoteAddr: "172.16.0.9:12345",
			expectedIP: "172.16.0.9",
		},
		{
			name:    "X-Real-IP ignored from untrusted peer",
			trusted: nil,
			headers: map[string]string{
				"X-Real-IP": "203.0.113.2",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:    "oversized X-Forwarded-For ignored",
			trusted: trusted,
			headers: map[string]string{
				"X-Forwarded-For": strings.Repeat("203.0.113.1, ", 50) + "203.0.113.1",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:    "malformed X-Forwarded-For falls back to peer",
			trusted: trusted,
			headers: map[string]string{
				"X-Forwarded-For": "not-an-ip",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "IPv4 RemoteAddr",
			trusted:    nil,
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100:54321",
			expectedIP: "192.168.1.100",
		},
		{
			name:       "IPv6 RemoteAddr strips brackets",
			trusted:    nil,
			headers:    map[string]string{},
			remoteAddr: "[::1]:8080",
			expectedIP: "::1",
		},
		{
			name:    "IPv6 trusted proxy",
			trusted: trusted,
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.5",
			},
			remoteAddr: "[::1]:8080",
			expectedIP: "203.0.113.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			ip := extractClientIP(req, tt.trusted)
			assert.Equal(t, tt.expectedIP, ip)
		})
	}
}
