// Package security guards outbound HTTP against SSRF: URLs must be
// http/https and must not resolve to loopback, link-local, or private
// address space.
package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"chloe-bot/internal/domain"
)

// blockedPrefixes covers RFC 1918, loopback, link-local, the unspecified
// block, and their IPv6 counterparts.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsPrivateIP reports whether ip falls in a blocked range. Unparseable
// addresses count as private.
func IsPrivateIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	return isBlocked(addr)
}

func isBlocked(addr netip.Addr) bool {
	// Prefix.Contains never matches zoned addresses.
	addr = addr.WithZone("").Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ValidateURL rejects URLs whose scheme is not http/https or whose host
// is, or resolves to, a blocked address.
func ValidateURL(rawURL string) error {
	blocked := func(detail string) error {
		return domain.NewDomainError("ValidateURL", domain.ErrSSRFBlocked, detail)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return blocked(fmt.Sprintf("invalid URL: %v", err))
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return blocked(fmt.Sprintf("scheme %q not allowed, only http/https", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return blocked("empty hostname")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlocked(addr) {
			return blocked(fmt.Sprintf("address %s is private/reserved", addr))
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return blocked(fmt.Sprintf("DNS lookup failed: %v", err))
	}
	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return blocked(fmt.Sprintf("host %s resolves to private address %s", host, ip))
		}
	}
	return nil
}

// NewSSRFSafeTransport returns a transport whose dialer resolves the host
// itself, checks every resolved address, and connects to the checked
// address directly. Resolving once closes the rebinding window between
// URL validation and the actual connection.
func NewSSRFSafeTransport() *http.Transport {
	return &http.Transport{
		DialContext:           dialChecked,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func dialChecked(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	resolved, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, domain.NewDomainError("SSRFSafeTransport.Dial", err,
			fmt.Sprintf("DNS lookup failed for %s", host))
	}
	if len(resolved) == 0 {
		return nil, domain.NewDomainError("SSRFSafeTransport.Dial",
			fmt.Errorf("no addresses resolved"), host)
	}
	for _, ip := range resolved {
		if IsPrivateIP(ip.IP) {
			return nil, domain.NewDomainError("SSRFSafeTransport.Dial", domain.ErrSSRFBlocked,
				fmt.Sprintf("%s resolves to private address %s", host, ip.IP))
		}
	}

	d := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return d.DialContext(ctx, network, net.JoinHostPort(resolved[0].IP.String(), port))
}
