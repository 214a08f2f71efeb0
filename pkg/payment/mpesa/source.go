package mpesa

import (
	"fmt"
	"net"
	"strings"

	"spark/pkg/payment/types"
)

// SourceVerifier decides whether a callback request may be trusted
type SourceVerifier interface {
	Verify(ip string) error
}

// IPAllowList accepts callers whose IP matches a configured prefix or CIDR
type IPAllowList struct {
	prefixes      []string
	networks      []*net.IPNet
	allowLoopback bool
}

var _ SourceVerifier = (*IPAllowList)(nil)

// NewIPAllowList parses entries such as "196.201.214." or "196.201.214.0/24".
// allowLoopback must be false in production.
func NewIPAllowList(entries []string, allowLoopback bool) *IPAllowList {
	l := &IPAllowList{allowLoopback: allowLoopback}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil {
				l.networks = append(l.networks, network)
				continue
			}
		}
		l.prefixes = append(l.prefixes, entry)
	}
	return l
}

// Verify returns types.ErrUnauthorizedSource unless ip is allowed
func (l *IPAllowList) Verify(ip string) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return fmt.Errorf("%w: no client ip", types.ErrUnauthorizedSource)
	}

	if l.allowLoopback && isLoopback(ip) {
		return nil
	}

	candidate := ip
	if parsed := net.ParseIP(ip); parsed != nil {
		if v4 := parsed.To4(); v4 != nil {
			candidate = v4.String()
			parsed = v4
		}
		for _, network := range l.networks {
			if network.Contains(parsed) {
				return nil
			}
		}
	}

	for _, prefix := range l.prefixes {
		if strings.HasPrefix(candidate, prefix) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", types.ErrUnauthorizedSource, ip)
}

func isLoopback(ip string) bool {
	if ip == "localhost" {
		return true
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
