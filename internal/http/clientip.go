package http

import (
	"net"
	stdhttp "net/http"
	"net/netip"
	"strings"

	"github.com/rotisserie/eris"
)

// trustedProxies lists the networks whose forwarding headers are believed.
type trustedProxies []netip.Prefix

// parseTrustedProxies accepts bare addresses and CIDR ranges.
func parseTrustedProxies(values []string) (trustedProxies, error) {
	proxies := make(trustedProxies, 0, len(values))
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if strings.Contains(value, "/") {
			prefix, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, eris.Wrapf(err, "invalid trusted proxy %q", value)
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid trusted proxy %q", value)
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

func (p trustedProxies) contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP resolves the address a request is attributed to. The connection
// peer is used unless it is a trusted proxy, in which case X-Forwarded-For is
// read from the right and the first hop outside the trusted set wins.
func (p trustedProxies) clientIP(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	peer := strings.TrimSpace(req.RemoteAddr)
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !p.contains(peerAddr) {
		return peer
	}

	hops := forwardedHops(req.Header.Values("X-Forwarded-For"))
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(hops[i])
		if err != nil {
			// A trusted proxy appended something unparsable; key on it as is.
			return hops[i]
		}
		if !p.contains(hop) {
			return hop.Unmap().String()
		}
	}

	if realIP, err := netip.ParseAddr(strings.TrimSpace(req.Header.Get("X-Real-IP"))); err == nil {
		return realIP.Unmap().String()
	}

	return peerAddr.Unmap().String()
}

func forwardedHops(headers []string) []string {
	var hops []string
	for _, header := range headers {
		for _, part := range strings.Split(header, ",") {
			if hop := strings.TrimSpace(part); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}
