package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

const CorrelationIDHeader = "X-Correlation-ID"

// RequestContext makes sure every request and response carries a
// correlation id and stores it, with the client IP, on the request context.
// Forwarding headers are only read from peers inside trustedProxies.
func RequestContext(header string, trustedProxies []*net.IPNet) func(http.Handler) http.Handler {
	if header == "" {
		header = CorrelationIDHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := r.Header.Get(header)
			if cid == "" || len(cid) > 128 {
				cid = uuid.NewString()
			}
			w.Header().Set(header, cid)

			ctx := logger.WithCorrelationID(r.Context(), cid)
			ctx = inbound.WithClientIP(ctx, ClientIP(r, trustedProxies))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the connection address unless it belongs to a trusted
// proxy. Behind a trusted proxy it takes the right-most X-Forwarded-For hop
// that is not itself trusted, then X-Real-IP.
func ClientIP(r *http.Request, trustedProxies []*net.IPNet) string {
	remote := remoteHost(r.RemoteAddr)
	if !isTrusted(remote, trustedProxies) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			client = hop
			if !isTrusted(hop, trustedProxies) {
				break
			}
		}
		if client != "" {
			return client
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return remote
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func isTrusted(addr string, trustedProxies []*net.IPNet) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
