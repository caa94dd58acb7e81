package tracking

import (
	"net"
	"net/http"
)

// ClientIP returns the caller address from RemoteAddr. Proxy headers are
// applied upstream by chi's middleware.RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}
