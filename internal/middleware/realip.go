package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ParseTrustedProxies はTRUSTED_PROXIESの値（CIDRまたは単一IP）を解析する。
// 空要素は無視する。
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// NewTrustedProxyMiddleware は信頼済みプロキシ経由のリクエストに限り、
// 転送ヘッダーから実クライアントIPを求めてRemoteAddrを書き換える。
//
// X-Forwarded-Forは右から辿り、最初に現れる信頼済みでないアドレスを採用する。
// X-Forwarded-Forがない場合はX-Real-IPを使う。
// 直接の接続元が信頼済みでない場合、転送ヘッダーは一切参照しない。
// trustedが空の場合は何もしない。
func NewTrustedProxyMiddleware(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, ok := parseIP(ClientIP(r)); ok && isTrusted(trusted, peer) {
				if ip, ok := forwardedClientIP(r, trusted); ok {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClientIP は転送ヘッダーから実クライアントIPを取り出す。
func forwardedClientIP(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}

	var last netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		ip, ok := parseIP(hops[i])
		if !ok {
			// 壊れた値より左は信用できない
			break
		}
		last = ip
		if !isTrusted(trusted, ip) {
			return ip, true
		}
	}
	if last.IsValid() {
		// すべて信頼済みプロキシの場合は最も左のアドレス
		return last, true
	}

	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip, true
	}
	return netip.Addr{}, false
}

func parseIP(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isTrusted(trusted []netip.Prefix, ip netip.Addr) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
