package server

import (
	"net"
	"net/http"
	"strings"
)

// TrustedProxies decides when X-Forwarded-For and X-Real-IP headers may
// be believed. Only requests arriving from a configured proxy range get
// their forwarded headers honored; everyone else is identified by the
// connection address.
type TrustedProxies struct {
	networks []*net.IPNet
}

// NewTrustedProxies creates a TrustedProxies from CIDR strings. Bare
// IPs are accepted as /32 or /128. Invalid entries are ignored.
func NewTrustedProxies(cidrs []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, cidr := range cidrs {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			tp.networks = append(tp.networks, network)
			continue
		}
		ip := net.ParseIP(cidr)
		if ip == nil {
			continue
		}
		suffix := "/128"
		if ip.To4() != nil {
			suffix = "/32"
		}
		if _, network, err := net.ParseCIDR(ip.String() + suffix); err == nil {
			tp.networks = append(tp.networks, network)
		}
	}
	return tp
}

// IsTrusted reports whether the IP falls in a trusted proxy range.
func (tp *TrustedProxies) IsTrusted(ip net.IP) bool {
	for _, network := range tp.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetClientIP extracts the real client IP from a request. Forwarded
// headers count only when the direct peer is a trusted proxy.
func (tp *TrustedProxies) GetClientIP(r *http.Request) net.IP {
	directIP := parseRemoteAddr(r.RemoteAddr)
	if directIP == nil || !tp.IsTrusted(directIP) {
		return directIP
	}

	// X-Forwarded-For is "client, proxy1, proxy2"; the first parsable
	// entry wins.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
		return directIP
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip
		}
	}
	return directIP
}

// GetClientIPString returns the client IP for logging and rate limiting.
func (tp *TrustedProxies) GetClientIPString(r *http.Request) string {
	ip := tp.GetClientIP(r)
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}

// parseRemoteAddr extracts the IP from net/http RemoteAddr ("ip:port"
// or "[ip]:port").
func parseRemoteAddr(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.ParseIP(addr)
	}
	return net.ParseIP(host)
}
