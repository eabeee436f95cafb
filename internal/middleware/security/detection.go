package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"<script", "union select", "etc/passwd", "cmd.exe",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}

// Detector extracts client addresses and flags probing requests. It only
// logs; blocking is left to the rate limiter.
type Detector struct {
	trustedProxies []*net.IPNet
	logger         *slog.Logger
	suspicious     int64
}

// NewDetector creates a detector trusting loopback and private networks as
// proxies.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
			parseCIDR("::1/128"),
		},
		logger: logger.With("component", "security"),
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// ExtractClientIP returns the client address, honouring forwarding headers
// only when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsSuspicious reports whether r looks like a vulnerability probe.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(target, pattern) {
			return true
		}
	}

	agent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, scanner := range scannerAgents {
		if strings.Contains(agent, scanner) {
			return true
		}
	}

	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return true
	}
	return len(r.URL.String()) > 2048
}

// Middleware logs suspicious requests and passes every request on.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsSuspicious(r) {
			atomic.AddInt64(&d.suspicious, 1)
			d.logger.WarnContext(r.Context(), "Suspicious request",
				"client_ip", d.ExtractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// SuspiciousCount returns how many suspicious requests were seen.
func (d *Detector) SuspiciousCount() int64 {
	return atomic.LoadInt64(&d.suspicious)
}
