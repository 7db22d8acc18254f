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

// Package security sets HTTP response headers that harden browsers against
// clickjacking, MIME sniffing and content injection.
package security

// Option configures the security middleware.
type Option func(*config)

type config struct {
	frameOptions       string
	contentTypeNosniff bool
	xssProtection      string

	hstsMaxAge            int
	hstsIncludeSubdomains bool
	hstsPreload           bool
	trustForwardedProto   bool

	contentSecurityPolicy   string
	referrerPolicy          string
	permissionsPolicy       string
	crossOriginOpenerPolicy string
	customHeaders           map[string]string
}

func defaultConfig() *config {
	return &config{
		frameOptions:          "DENY",
		contentTypeNosniff:    true,
		xssProtection:         "1; mode=block",
		hstsMaxAge:            31536000,
		hstsIncludeSubdomains: true,
		contentSecurityPolicy: "default-src 'self'",
		referrerPolicy:        "strict-origin-when-cross-origin",
		customHeaders:         make(map[string]string),
	}
}

// WithFrameOptions sets X-Frame-Options ("DENY", "SAMEORIGIN").
// An empty value omits the header.
func WithFrameOptions(value string) Option {
	return func(cfg *config) {
		cfg.frameOptions = value
	}
}

// WithContentTypeNosniff toggles X-Content-Type-Options: nosniff.
func WithContentTypeNosniff(enabled bool) Option {
	return func(cfg *config) {
		cfg.contentTypeNosniff = enabled
	}
}

// WithXSSProtection sets X-XSS-Protection. The header is obsolete in modern
// browsers; "0" or "" are reasonable choices too.
func WithXSSProtection(value string) Option {
	return func(cfg *config) {
		cfg.xssProtection = value
	}
}

// WithHSTS configures Strict-Transport-Security. A maxAge of 0 disables it.
//
// Example:
//
//	security.New(security.WithHSTS(63072000, true, true))
func WithHSTS(maxAge int, includeSubdomains, preload bool) Option {
	return func(cfg *config) {
		cfg.hstsMaxAge = maxAge
		cfg.hstsIncludeSubdomains = includeSubdomains
		cfg.hstsPreload = preload
	}
}

// WithTrustForwardedProto treats X-Forwarded-Proto: https as TLS when
// deciding whether to send HSTS. Enable it only behind a proxy that sets
// the header.
func WithTrustForwardedProto(trust bool) Option {
	return func(cfg *config) {
		cfg.trustForwardedProto = trust
	}
}

// WithContentSecurityPolicy sets Content-Security-Policy.
func WithContentSecurityPolicy(policy string) Option {
	return func(cfg *config) {
		cfg.contentSecurityPolicy = policy
	}
}

// WithReferrerPolicy sets Referrer-Policy.
func WithReferrerPolicy(policy string) Option {
	return func(cfg *config) {
		cfg.referrerPolicy = policy
	}
}

// WithPermissionsPolicy sets Permissions-Policy, e.g. "geolocation=(), camera=()".
func WithPermissionsPolicy(policy string) Option {
	return func(cfg *config) {
		cfg.permissionsPolicy = policy
	}
}

// WithCrossOriginOpenerPolicy sets Cross-Origin-Opener-Policy.
func WithCrossOriginOpenerPolicy(policy string) Option {
	return func(cfg *config) {
		cfg.crossOriginOpenerPolicy = policy
	}
}

// WithCustomHeader sets an extra response header.
func WithCustomHeader(name, value string) Option {
	return func(cfg *config) {
		cfg.customHeaders[name] = value
	}
}

// WithDevelopmentDefaults relaxes framing and CSP and turns HSTS off.
func WithDevelopmentDefaults() Option {
	return func(cfg *config) {
		cfg.frameOptions = "SAMEORIGIN"
		cfg.contentSecurityPolicy = "default-src 'self' 'unsafe-inline' 'unsafe-eval'"
		cfg.hstsMaxAge = 0
	}
}
