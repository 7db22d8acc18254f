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

package security

import (
	"fmt"
	"strings"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "security"

type none struct{}

// New returns a middleware that sets security headers on every response,
// including short-circuited and error responses.
//
// Defaults:
//   - X-Frame-Options: DENY
//   - X-Content-Type-Options: nosniff
//   - X-XSS-Protection: 1; mode=block
//   - Strict-Transport-Security: max-age=31536000; includeSubDomains (HTTPS only)
//   - Content-Security-Policy: default-src 'self'
//   - Referrer-Policy: strict-origin-when-cross-origin
//
// Example:
//
//	r.Use(security.New(
//	    security.WithFrameOptions("SAMEORIGIN"),
//	    security.WithHSTS(0, false, false), // off in development
//	))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var hsts string
	if cfg.hstsMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", cfg.hstsMaxAge)
		if cfg.hstsIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		if cfg.hstsPreload {
			hsts += "; preload"
		}
	}

	static := make([][2]string, 0, 8)
	add := func(name, value string) {
		if value != "" {
			static = append(static, [2]string{name, value})
		}
	}
	add("X-Frame-Options", cfg.frameOptions)
	if cfg.contentTypeNosniff {
		add("X-Content-Type-Options", "nosniff")
	}
	add("X-XSS-Protection", cfg.xssProtection)
	add("Content-Security-Policy", cfg.contentSecurityPolicy)
	add("Referrer-Policy", cfg.referrerPolicy)
	add("Permissions-Policy", cfg.permissionsPolicy)
	add("Cross-Origin-Opener-Policy", cfg.crossOriginOpenerPolicy)
	for name, value := range cfg.customHeaders {
		add(name, value)
	}

	return router.NewMiddleware(Name, router.Hooks[none]{
		Before: func(req *router.Request, res *router.Response, _ *none) router.Flow {
			h := res.Header()
			for _, kv := range static {
				h.Set(kv[0], kv[1])
			}
			if hsts != "" && cfg.secure(req) {
				h.Set("Strict-Transport-Security", hsts)
			}
			return router.Continue
		},
	})
}

// secure reports whether req arrived over TLS, directly or through a
// trusted proxy.
func (cfg *config) secure(req *router.Request) bool {
	if hr := req.HTTP(); hr != nil && hr.TLS != nil {
		return true
	}
	return cfg.trustForwardedProto && strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}
