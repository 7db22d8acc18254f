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

// Package requestid provides middleware for generating and propagating
// unique request IDs for distributed tracing and log correlation.
package requestid

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"crest.dev/router"
	"crest.dev/router/middleware"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "requestid"

// ID is the exposed per-request slice.
type ID struct {
	Value string

	// FromClient reports whether the id was taken from the request header.
	FromClient bool
}

// generateUUIDv7 generates a UUID v7 string (RFC 9562).
// UUID v7 embeds a millisecond timestamp, so ids sort by creation time.
func generateUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ulidEntropy is a monotonic entropy source; ULIDs created within the same
// millisecond still sort in creation order. It is not safe for concurrent use.
var (
	ulidEntropy     = ulid.Monotonic(rand.Reader, 0)
	ulidEntropyLock sync.Mutex
)

func generateULID() string {
	ulidEntropyLock.Lock()
	defer ulidEntropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// New returns a middleware that assigns a request id to every request.
//
// The middleware will:
//  1. Use the id from the configured header if client ids are allowed and
//     the value is acceptable
//  2. Otherwise generate a new one (UUID v7 by default)
//  3. Echo the id in the response header
//
// The id is exposed as the middleware's slice and also stored in the
// request context under [middleware.RequestIDKey].
//
// Basic usage:
//
//	rid := requestid.New()
//	r.Use(rid)
//
//	r.GET("/", router.Handle0(func(req *router.Request, res *router.Response) error {
//	    res.Text(http.StatusOK, requestid.Get(req, rid))
//	    return nil
//	}))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return router.NewMiddleware(Name, router.Hooks[ID]{
		Before: func(req *router.Request, res *router.Response, id *ID) router.Flow {
			if cfg.allowClientID {
				if v := req.Header.Get(cfg.headerName); v != "" && len(v) <= cfg.maxLength {
					id.Value = v
					id.FromClient = true
				}
			}
			if id.Value == "" {
				id.Value = cfg.generator()
			}

			res.Header().Set(cfg.headerName, id.Value)
			req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, id.Value))
			return router.Continue
		},
		After: func(_ *router.Request, res *router.Response, id *ID) {
			// Error handlers and short-circuits may reset headers.
			if res.Header().Get(cfg.headerName) == "" {
				res.Header().Set(cfg.headerName, id.Value)
			}
		},
	}, router.Expose())
}

// Get returns the request id assigned by m, or "" if m has not run.
func Get(req *router.Request, m *router.Middleware) string {
	if id, ok := router.SliceOf[ID](req, m); ok {
		return id.Value
	}
	return middleware.RequestID(req.Context())
}
