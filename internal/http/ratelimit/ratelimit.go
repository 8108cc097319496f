package ratelimit

import (
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gitea.jw6.us/james/dashboard/internal/keyed"
)

// IPRateLimiter manages rate limiters per client IP address.
type IPRateLimiter struct {
	limiters       *keyed.Registry[*rate.Limiter]
	trustedProxies []*net.IPNet
}

// NewIPRateLimiter creates a new IP-based rate limiter
// rate: requests per second (e.g., 0.2 = one request every five seconds)
// burst: maximum burst size
// cleanup: how often idle limiters are swept
// trustedProxies: CIDR ranges or IPs of trusted reverse proxies (empty = trust forwarded headers)
func NewIPRateLimiter(r rate.Limit, b int, cleanup time.Duration, trustedProxies []string) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters: keyed.New(func(string) *rate.Limiter {
			return rate.NewLimiter(r, b)
		}, cleanup, keyed.DefaultMaxEntries),
	}

	for _, cidr := range trustedProxies {
		if ipnet := parseTrusted(cidr); ipnet != nil {
			limiter.trustedProxies = append(limiter.trustedProxies, ipnet)
		} else {
			log.Printf("[WARN] ignoring invalid trusted proxy %q", cidr)
		}
	}
	return limiter
}

func parseTrusted(cidr string) *net.IPNet {
	if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
		return ipnet
	}
	ip := net.ParseIP(cidr)
	if ip == nil {
		return nil
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

// Close stops the background sweep.
func (l *IPRateLimiter) Close() {
	l.limiters.Close()
}

// Allow reports whether a request from ip may proceed.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.limiters.Get(ip).Allow()
}

// Middleware creates HTTP middleware for rate limiting
func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.ClientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the caller address, honouring forwarded headers only
// from trusted proxies when any are configured.
func (l *IPRateLimiter) ClientIP(r *http.Request) string {
	remoteIP := parseIP(r.RemoteAddr)

	if len(l.trustedProxies) > 0 {
		trusted := false
		for _, ipnet := range l.trustedProxies {
			if remoteIP != nil && ipnet.Contains(remoteIP) {
				trusted = true
				break
			}
		}
		if !trusted {
			return remoteIP.String()
		}
	}

	// Leftmost X-Forwarded-For entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if parsed := net.ParseIP(xri); parsed != nil {
			return parsed.String()
		}
	}
	return remoteIP.String()
}

func parseIP(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
