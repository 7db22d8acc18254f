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

/*
Package middleware holds shared types for the Crest middleware packages.

Each middleware lives in its own sub-package and is built on
[router.NewMiddleware], so it has a before phase, an after phase and a
typed per-request slice:

Security:
  - security: sets security headers (HSTS, CSP, X-Frame-Options, ...)
  - cors: Cross-Origin Resource Sharing, including preflight short-circuit
  - basicauth: HTTP Basic Authentication

Observability:
  - accesslog: structured access logging with sampling and filtering
  - requestid: request id generation, UUID v7 or ULID

Reliability:
  - recovery: turns panics into 500 responses and marks the active span
  - ratelimit: token bucket rate limiting per client
  - bodylimit: request body size limiting
  - timeout: request context deadlines with a timeout response

Performance:
  - compression: brotli and gzip response compression

Routing helpers:
  - trailingslash: redirects to the registered form of a path

Global setup:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	r := router.MustNew()
	r.Use(
	    requestid.New(),
	    accesslog.New(accesslog.WithLogger(logger)),
	    recovery.New(),
	    security.New(),
	)

Per-rule use through declared names:

	if err := r.Declare(basicauth.New(basicauth.WithUsers(users))); err != nil {
	    log.Fatal(err)
	}
	r.GET("/admin", admin, router.WithMiddleware(basicauth.Name))
*/
package middleware
