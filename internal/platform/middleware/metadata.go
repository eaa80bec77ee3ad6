package middleware

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"
)

// MaxForwardedHeaderLength is the maximum allowed length for forwarding
// headers (X-Forwarded-For, X-Real-IP) to prevent header injection attacks.
const MaxForwardedHeaderLength = 500

type clientIPKey struct{}
type userAgentKey struct{}

// ClientMetadata extracts the client IP address and User-Agent from the
// request and adds them to the context for handlers and services.
//
// Forwarding headers are honored only when the direct peer is inside one of
// the trustedProxies prefixes; otherwise the connection's RemoteAddr wins.
// With no trusted proxies configured, X-Forwarded-For is never trusted, so a
// direct client cannot pick its own identity by setting the header.
func ClientMetadata(trustedProxies []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = context.WithValue(ctx, clientIPKey{}, extractClientIP(r, trustedProxies))
			ctx = context.WithValue(ctx, userAgentKey{}, r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP retrieves the client IP from the context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// GetUserAgent retrieves the raw User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

func extractClientIP(r *http.Request, trusted []netip.Prefix) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}
	if !isTrustedProxy(remoteIP, trusted) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && len(xff) <= MaxForwardedHeaderLength {
		// First hop in the chain is the original client.
		clientIP := xff
		if before, _, ok := strings.Cut(xff, ","); ok {
			clientIP = before
		}
		clientIP = strings.TrimSpace(clientIP)
		if _, err := netip.ParseAddr(clientIP); err == nil {
			return clientIP
		}
		return remoteIP
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" && len(xri) <= MaxForwardedHeaderLength {
		clientIP := strings.TrimSpace(xri)
		if _, err := netip.ParseAddr(clientIP); err == nil {
			return clientIP
		}
	}

	return remoteIP
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr extracts the IP from RemoteAddr (strips port and brackets).
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	// IPv6 with brackets: [::1]:port
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(remoteAddr, "[]")
	}
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}

// DescribeDevice renders a User-Agent as a short human-readable device name,
// e.g. "Chrome on Windows 10". Audit entries carry this instead of the raw
// string so trails stay readable.
func DescribeDevice(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		return browser
	}
	return browser + " on " + os
}
