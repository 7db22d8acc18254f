// Copyright 2025 The Crest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package router

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// RealIPHeader names a header carrying the client address set by a proxy.
type RealIPHeader string

const (
	HeaderXFF          RealIPHeader = "X-Forwarded-For"
	HeaderXRealIP      RealIPHeader = "X-Real-IP"
	HeaderCFConnecting RealIPHeader = "CF-Connecting-IP"
)

// maxXFFEntries is the chain length above which a diagnostic is emitted.
const maxXFFEntries = 10

// TrustedProxyOption configures [WithTrustedProxies].
type TrustedProxyOption func(*trustedProxyConfig)

type trustedProxyConfig struct {
	proxies []string
	headers []RealIPHeader
	maxHops int
}

// realIPConfig is the compiled proxy configuration.
type realIPConfig struct {
	prefixes []netip.Prefix
	headers  []RealIPHeader
	maxHops  int
}

// WithProxies sets the trusted proxy ranges in CIDR notation. A bare
// address trusts that address only.
//
// Example:
//
//	router.WithProxies("10.0.0.0/8", "192.168.0.0/16", "127.0.0.1")
func WithProxies(cidrs ...string) TrustedProxyOption {
	return func(cfg *trustedProxyConfig) {
		cfg.proxies = cidrs
	}
}

// WithProxyHeaders sets the headers to consult, in order of preference.
// Default: X-Forwarded-For, then X-Real-IP. Any header name works:
//
//	router.WithProxyHeaders(router.HeaderXFF, router.RealIPHeader("Fastly-Client-IP"))
func WithProxyHeaders(headers ...RealIPHeader) TrustedProxyOption {
	return func(cfg *trustedProxyConfig) {
		cfg.headers = headers
	}
}

// WithProxyMaxHops bounds how many trusted entries of X-Forwarded-For are
// skipped from the right. Default: 1.
func WithProxyMaxHops(n int) TrustedProxyOption {
	return func(cfg *trustedProxyConfig) {
		cfg.maxHops = n
	}
}

// WithTrustedProxies makes [Request.ClientIP] honor forwarding headers, but
// only for requests whose peer address is a trusted proxy. An invalid range
// fails [New] with [ErrInvalidProxy].
//
// Example:
//
//	r := router.MustNew(router.WithTrustedProxies(
//	    router.WithProxies("10.0.0.0/8"),
//	    router.WithProxyMaxHops(2),
//	))
func WithTrustedProxies(opts ...TrustedProxyOption) Option {
	return func(r *Router) {
		cfg := &trustedProxyConfig{}
		for _, opt := range opts {
			opt(cfg)
		}
		r.realIP, r.realIPErr = compileProxies(cfg)
	}
}

func compileProxies(opts *trustedProxyConfig) (*realIPConfig, error) {
	cfg := &realIPConfig{
		headers:  opts.headers,
		maxHops:  opts.maxHops,
		prefixes: make([]netip.Prefix, 0, len(opts.proxies)),
	}
	if len(cfg.headers) == 0 {
		cfg.headers = []RealIPHeader{HeaderXFF, HeaderXRealIP}
	}
	if cfg.maxHops <= 0 {
		cfg.maxHops = 1
	}
	for _, s := range opts.proxies {
		p, err := parsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidProxy, s, err)
		}
		cfg.prefixes = append(cfg.prefixes, p)
	}
	return cfg, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (cfg *realIPConfig) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range cfg.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP resolves the client address of req under cfg. The second result
// is the X-Forwarded-For entry count when the chain looks forged.
func (cfg *realIPConfig) clientIP(req *Request) (string, int) {
	peer := peerIP(req.RemoteAddr)
	if !cfg.trusted(peer) {
		return peer, 0
	}
	for _, h := range cfg.headers {
		if h == HeaderXFF {
			xff := req.Header.Get(string(HeaderXFF))
			if ip := cfg.lastUntrusted(xff); ip != "" {
				n := 0
				if c := strings.Count(xff, ","); c >= maxXFFEntries {
					n = c + 1
				}
				return ip, n
			}
			continue
		}
		if ip := parseOneIP(req.Header.Get(string(h))); ip != "" {
			return ip, 0
		}
	}
	return peer, 0
}

// lastUntrusted walks the X-Forwarded-For chain from the right, skipping
// at most maxHops trusted proxies, and returns the first address that is
// not trusted. A chain made only of trusted proxies yields its leftmost
// entry.
func (cfg *realIPConfig) lastUntrusted(xff string) string {
	if xff == "" {
		return ""
	}
	parts := strings.Split(xff, ",")
	hops := 0
	leftmost := ""
	for i := len(parts) - 1; i >= 0; i-- {
		ip := parseOneIP(parts[i])
		if ip == "" {
			continue
		}
		leftmost = ip
		if !cfg.trusted(ip) {
			return ip
		}
		hops++
		if hops > cfg.maxHops {
			return ip
		}
	}
	return leftmost
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func parseOneIP(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}
