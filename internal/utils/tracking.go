package utils

import (
	"net"
	"net/http"
	"strings"
)

var clientIPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// GetIPAddress returns the client address recorded on sessions: the first parseable proxy
// header entry, else the peer address.
func GetIPAddress(r *http.Request) string {
	for _, h := range clientIPHeaders {
		first, _, _ := strings.Cut(r.Header.Get(h), ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
