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

// Package trailingslash redirects requests whose path differs from a
// registered route only by a trailing slash.
package trailingslash

import (
	"net/http"
	"strings"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "trailingslash"

// Policy defines how trailing slashes are handled.
type Policy int

const (
	// PolicyMatch redirects only when the request did not match and the
	// path with the slash added or removed would. "/users" and "/users/"
	// may still be registered as distinct routes.
	PolicyMatch Policy = iota

	// PolicyRemove redirects every path ending in a slash to the path
	// without it. The root path is never redirected.
	PolicyRemove

	// PolicyAdd redirects every path without a trailing slash to the path
	// with one. The root path is never redirected.
	PolicyAdd
)

// Matcher resolves a method and path. [*router.Router] implements it.
type Matcher interface {
	Match(method router.Method, path string) router.Result
}

// Option configures the trailing slash middleware.
type Option func(*config)

type config struct {
	policy Policy
	code   int
}

// WithPolicy sets the policy. Default: PolicyMatch.
func WithPolicy(p Policy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithStatus sets the redirect status. Default: 308, which keeps the
// method and body.
func WithStatus(code int) Option {
	return func(cfg *config) {
		cfg.code = code
	}
}

type none struct{}

// New returns a global middleware that redirects to the canonical path.
// m is consulted by PolicyMatch; it is usually the router the middleware is
// registered on.
//
// Example:
//
//	r := router.MustNew()
//	r.Use(trailingslash.New(r))
//	r.GET("/users/", listUsers) // GET /users redirects to /users/
func New(m Matcher, opts ...Option) *router.Middleware {
	cfg := &config{policy: PolicyMatch, code: http.StatusPermanentRedirect}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.policy == PolicyMatch && m == nil {
		panic("trailingslash: PolicyMatch needs a Matcher")
	}

	return router.NewMiddleware(Name, router.Hooks[none]{
		Before: func(req *router.Request, res *router.Response, _ *none) router.Flow {
			path := req.Path
			if path == "/" || path == "" {
				return router.Continue
			}
			hasSlash := strings.HasSuffix(path, "/")

			var target string
			switch cfg.policy {
			case PolicyRemove:
				if hasSlash {
					target = strings.TrimSuffix(path, "/")
				}
			case PolicyAdd:
				if !hasSlash {
					target = path + "/"
				}
			default:
				if req.Outcome() != router.NotFound {
					return router.Continue
				}
				alt := path + "/"
				if hasSlash {
					alt = strings.TrimSuffix(path, "/")
				}
				if m.Match(req.Method, alt).Outcome != router.NotFound {
					target = alt
				}
			}
			if target == "" {
				return router.Continue
			}

			res.Redirect(cfg.code, withQuery(req, target))
			return router.Stop
		},
	})
}

// withQuery appends the request's query string to path.
func withQuery(req *router.Request, path string) string {
	if hr := req.HTTP(); hr != nil {
		if hr.URL.RawQuery != "" {
			return path + "?" + hr.URL.RawQuery
		}
		return path
	}
	if len(req.Query) > 0 {
		return path + "?" + req.Query.Encode()
	}
	return path
}
