package api

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

const clientIPKey contextKey = "client_ip"

// ProxyTrust holds the peers allowed to report the client address through
// X-Forwarded-For or X-Real-IP. Any other peer is taken at face value.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust accepts bare addresses and CIDR prefixes.
func NewProxyTrust(entries []string) (*ProxyTrust, error) {
	pt := &ProxyTrust{}
	for _, raw := range entries {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		if addr, err := netip.ParseAddr(value); err == nil {
			addr = addr.Unmap()
			pt.prefixes = append(pt.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
		}
		pt.prefixes = append(pt.prefixes, prefix.Masked())
	}
	return pt, nil
}

func (pt *ProxyTrust) trusts(addr netip.Addr) bool {
	for _, p := range pt.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientAddr is the peer address, or the first parseable forwarded address
// when the peer is a trusted proxy.
func (pt *ProxyTrust) clientAddr(r *http.Request) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return "unknown"
	}

	if pt.trusts(peer) {
		for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if addr, ok := headerAddr(part); ok {
				return addr.String()
			}
		}
		if addr, ok := headerAddr(r.Header.Get("X-Real-IP")); ok {
			return addr.String()
		}
	}

	return peer.String()
}

// Middleware resolves the client address once and stores it on the request
// context for logging, rate limiting, sessions and audit entries.
func (pt *ProxyTrust) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, pt.clientAddr(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP returns the address stored by ProxyTrust.Middleware. Outside the
// router it falls back to the raw peer address.
func clientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	if addr, ok := peerAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	return "unknown"
}

func peerAddr(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

// headerAddr parses one forwarded entry. Entries may be quoted or carry a
// port.
func headerAddr(value string) (netip.Addr, bool) {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" {
		return netip.Addr{}, false
	}
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		value = value[1 : len(value)-1]
	}
	return peerAddr(value)
}
