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

// Package router is the routing and dispatch core of Crest.
//
// A router holds rules: a path template, a set of methods and a handler.
// Templates are slash-separated literals and typed parameters:
//
//	/users/<int>               signed 64-bit integer
//	/blobs/<uint>              unsigned 64-bit integer
//	/ratio/<float>             decimal float (<double> is an alias)
//	/tags/<string>             one segment (<str> is an alias)
//	/files/<path>              the rest of the path, slashes included
//
// # Matching
//
// Requests are matched segment by segment. At every position a literal is
// tried first, then int, uint, float and string parameters, then <path>.
// A segment only matches a parameter when it converts to the parameter's
// type, and a branch that fails further down is abandoned in favor of the
// next candidate. Matching never depends on registration order.
//
// The outcome is one of:
//
//   - Matched: the rule and its converted arguments
//   - MethodNotAllowed: the path exists for other methods; the response is
//     405 with an Allow header listing them
//   - NotFound: 404, or the nearest catch-all
//
// HEAD requests fall back to GET rules with the body suppressed, and
// OPTIONS requests are answered with 204 and an Allow header unless a rule
// handles them.
//
// # Handlers
//
// The parameter types a handler accepts are checked against the template
// when the rule is registered:
//
//	r.GET("/users/<int>", router.Handle1(func(req *router.Request, res *router.Response, id int64) error {
//	    return res.JSON(http.StatusOK, users.Get(id))
//	}))
//
//	r.GET("/files/<path>", func(req *router.Request, p string) error { ... })  // reflective
//	r.GET("/files/<int>", func(p string) {})                                     // rejected
//
// A mismatch fails registration with [ErrHandlerSignatureMismatch]. Other
// registration failures are [ErrDuplicateRoute] and [ErrMalformedTemplate].
// A failed registration leaves the router unchanged.
//
// # Middleware
//
// Middleware have a before phase, which may stop the pipeline, and an
// after phase. After phases run in reverse order for every middleware whose
// before phase ran, including when the pipeline stops early, the handler
// fails or something panics. Each middleware keeps per-request state in a
// typed slice:
//
//	type timing struct{ start time.Time }
//
//	r.Use(router.NewMiddleware("timing", router.Hooks[timing]{
//	    Before: func(_ *router.Request, _ *router.Response, s *timing) router.Flow {
//	        s.start = time.Now()
//	        return router.Continue
//	    },
//	    After: func(_ *router.Request, res *router.Response, s *timing) {
//	        res.Header().Set("X-Elapsed", time.Since(s.start).String())
//	    },
//	}))
//
// Middleware passed to [Router.Use] run for every request. Middleware
// passed to [Router.Declare] run only for rules and blueprints naming them.
//
// # Blueprints
//
// A [Blueprint] groups rules under a literal prefix with shared middleware
// and an optional catch-all, and can nest other blueprints. [Router.Mount]
// installs a blueprint tree as a single all-or-nothing batch.
//
// # Concurrency
//
// Rules can be registered while requests are served. Every registration
// publishes a new immutable snapshot; requests in flight keep using the
// snapshot they started with.
package router
