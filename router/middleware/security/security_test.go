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

//go:build !integration

package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"crest.dev/router"
	"crest.dev/router/middleware"
)

func setup(opts ...Option) *router.Router {
	r := router.MustNew()
	r.Use(New(opts...))
	r.GET("/test", router.Handle0(func(_ *router.Request, res *router.Response) error {
		res.Text(http.StatusOK, "ok")
		return nil
	}))
	return r
}

func TestSecurity_DefaultHeaders(t *testing.T) {
	t.Parallel()

	res := middleware.Do(setup(), router.NewRequest("GET", "/test"))

	h := res.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", h.Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Empty(t, h.Get("Permissions-Policy"))
	assert.Empty(t, h.Get("Strict-Transport-Security"), "HSTS is only sent over TLS")
}

func TestSecurity_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opt    Option
		header string
		want   string
	}{
		{"frame options", WithFrameOptions("SAMEORIGIN"), "X-Frame-Options", "SAMEORIGIN"},
		{"frame options off", WithFrameOptions(""), "X-Frame-Options", ""},
		{"nosniff off", WithContentTypeNosniff(false), "X-Content-Type-Options", ""},
		{"xss", WithXSSProtection("0"), "X-XSS-Protection", "0"},
		{"csp", WithContentSecurityPolicy("default-src 'none'"), "Content-Security-Policy", "default-src 'none'"},
		{"referrer", WithReferrerPolicy("no-referrer"), "Referrer-Policy", "no-referrer"},
		{"permissions", WithPermissionsPolicy("camera=()"), "Permissions-Policy", "camera=()"},
		{"coop", WithCrossOriginOpenerPolicy("same-origin"), "Cross-Origin-Opener-Policy", "same-origin"},
		{"custom", WithCustomHeader("X-Custom", "v"), "X-Custom", "v"},
		{"development", WithDevelopmentDefaults(), "X-Frame-Options", "SAMEORIGIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := middleware.Do(setup(tt.opt), router.NewRequest("GET", "/test"))
			assert.Equal(t, tt.want, res.Header().Get(tt.header))
		})
	}
}

func TestSecurity_HSTS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      []Option
		tls       bool
		forwarded string
		want      string
	}{
		{name: "tls", tls: true, want: "max-age=31536000; includeSubDomains"},
		{name: "plain http"},
		{name: "preload", opts: []Option{WithHSTS(63072000, true, true)}, tls: true, want: "max-age=63072000; includeSubDomains; preload"},
		{name: "disabled", opts: []Option{WithHSTS(0, false, false)}, tls: true},
		{name: "forwarded untrusted", forwarded: "https"},
		{name: "forwarded trusted", opts: []Option{WithTrustForwardedProto(true)}, forwarded: "https", want: "max-age=31536000; includeSubDomains"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hr := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/test", nil)
			if tt.tls {
				hr.TLS = &tls.ConnectionState{}
			}
			if tt.forwarded != "" {
				hr.Header.Set("X-Forwarded-Proto", tt.forwarded)
			}
			w := httptest.NewRecorder()
			setup(tt.opts...).ServeHTTP(w, hr)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Strict-Transport-Security"))
		})
	}
}

func TestSecurity_HeadersOnNotFound(t *testing.T) {
	t.Parallel()

	res := middleware.Do(setup(), router.NewRequest("GET", "/missing"))

	assert.Equal(t, http.StatusNotFound, res.Status())
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
}
