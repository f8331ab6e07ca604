package ratelimit

import (
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"strings"
)

// ClientIDFunc derives the rate-limit key for a request.
type ClientIDFunc func(r *http.Request) string

// ForwardedClientID keys requests by the first address in X-Forwarded-For,
// then X-Real-IP, then the connection's remote address. Requests with no
// usable address share a key per user agent.
func ForwardedClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "ip:" + ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return "ip:" + ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return "ip:" + host
	}
	return UserAgentClientID(r)
}

// UserAgentClientID returns a coarse token derived from the User-Agent header.
func UserAgentClientID(r *http.Request) string {
	h := fnv.New64a()
	h.Write([]byte(r.Header.Get("User-Agent")))
	return fmt.Sprintf("ua:%x", h.Sum64())
}
