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

// Package cors provides Cross-Origin Resource Sharing middleware.
package cors

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "cors"

type none struct{}

// New returns a CORS middleware.
//
// Simple requests from allowed origins get the Access-Control-Allow-*
// response headers. Preflight requests (OPTIONS with an
// Access-Control-Request-Method header) are answered with 204 and the
// pipeline stops, so no route needs to handle OPTIONS itself.
//
// Example:
//
//	r.Use(cors.New(
//	    cors.WithAllowedOrigins("https://example.com"),
//	    cors.WithAllowCredentials(true),
//	))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	allowedMethods := strings.Join(cfg.allowedMethods, ", ")
	allowedHeaders := strings.Join(cfg.allowedHeaders, ", ")
	exposedHeaders := strings.Join(cfg.exposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.maxAge)

	return router.NewMiddleware(Name, router.Hooks[none]{
		Before: func(req *router.Request, res *router.Response, _ *none) router.Flow {
			origin := req.Header.Get("Origin")
			if origin == "" {
				return router.Continue
			}

			h := res.Header()
			h.Add("Vary", "Origin")

			allowed := cfg.allowOrigin(origin)
			if allowed == "" {
				return router.Continue
			}

			// "*" is not valid with credentials; echo the origin instead.
			if cfg.allowCredentials && allowed == "*" {
				allowed = origin
			}
			h.Set("Access-Control-Allow-Origin", allowed)
			if cfg.allowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposedHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposedHeaders)
			}

			if req.Method == router.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", allowedMethods)
				h.Set("Access-Control-Allow-Headers", allowedHeaders)
				h.Set("Access-Control-Max-Age", maxAge)
				res.SetStatus(http.StatusNoContent)
				return router.Stop
			}
			return router.Continue
		},
	})
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (cfg *config) allowOrigin(origin string) string {
	switch {
	case cfg.allowAllOrigins:
		return "*"
	case cfg.allowOriginFunc != nil:
		if cfg.allowOriginFunc(origin) {
			return origin
		}
	case slices.Contains(cfg.allowedOrigins, origin):
		return origin
	}
	return ""
}
