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
	"runtime/debug"
)

// Flow is the verdict of a before phase.
type Flow uint8

const (
	// Continue runs the next middleware, or the handler after the last one.
	Continue Flow = iota

	// Stop short-circuits the pipeline. The response is treated as terminal,
	// the handler is skipped and the after phases of every middleware
	// entered so far still run.
	Stop
)

// Hooks are the two phases of a middleware. S is the middleware's context
// slice: a per-request record created before the first Before call and
// passed to both phases of the same request. Either hook may be nil.
type Hooks[S any] struct {
	Before func(req *Request, res *Response, s *S) Flow
	After  func(req *Request, res *Response, s *S)
}

// Middleware is a named unit of the request pipeline.
//
// Construct one with [NewMiddleware]; register it globally with
// [Router.Use] or declare it for rule-local use with [Router.Declare].
// A Middleware is immutable and may be shared by many routers.
type Middleware struct {
	name     string
	exposed  bool
	newSlice func() any
	before   func(req *Request, res *Response, slice any) Flow
	after    func(req *Request, res *Response, slice any)
}

// MiddlewareOption configures a [Middleware].
type MiddlewareOption func(*Middleware)

// Expose lets handlers and other middleware read this middleware's slice
// through [SliceOf]. Slices are private without it.
func Expose() MiddlewareOption {
	return func(m *Middleware) {
		m.exposed = true
	}
}

// NewMiddleware builds a middleware from typed hooks.
//
// Example:
//
//	type timing struct{ start time.Time }
//
//	mw := router.NewMiddleware("timing", router.Hooks[timing]{
//	    Before: func(_ *router.Request, _ *router.Response, s *timing) router.Flow {
//	        s.start = time.Now()
//	        return router.Continue
//	    },
//	    After: func(_ *router.Request, res *router.Response, s *timing) {
//	        res.Header().Set("Server-Timing", fmt.Sprintf("app;dur=%d", time.Since(s.start).Milliseconds()))
//	    },
//	})
func NewMiddleware[S any](name string, h Hooks[S], opts ...MiddlewareOption) *Middleware {
	if name == "" {
		panic("router: middleware name must not be empty")
	}
	m := &Middleware{
		name:     name,
		newSlice: func() any { return new(S) },
	}
	if h.Before != nil {
		m.before = func(req *Request, res *Response, slice any) Flow {
			return h.Before(req, res, slice.(*S))
		}
	}
	if h.After != nil {
		m.after = func(req *Request, res *Response, slice any) {
			h.After(req, res, slice.(*S))
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the middleware name.
func (m *Middleware) Name() string { return m.name }

// Exposed reports whether the slice is readable through [SliceOf].
func (m *Middleware) Exposed() bool { return m.exposed }

// SliceOf returns m's slice for req. It reports false when m does not expose
// its slice, has not run for req yet, or S is not its slice type.
func SliceOf[S any](req *Request, m *Middleware) (*S, bool) {
	if m == nil || !m.exposed || req.slices == nil {
		return nil, false
	}
	s, ok := req.slices[m].(*S)
	return s, ok
}

// slice returns m's slice for req, creating it on first use.
func (m *Middleware) slice(req *Request) any {
	if req.slices == nil {
		req.slices = make(map[*Middleware]any, 4)
	}
	s, ok := req.slices[m]
	if !ok {
		s = m.newSlice()
		req.slices[m] = s
	}
	return s
}

// chain is an ordered middleware list: global first, then local.
type chain []*Middleware

// run executes the before phases in order, then final, then the after
// phases of every entered middleware in reverse order.
//
// The after phases run from a deferred call, so they also run when a
// before phase, the handler or another after phase panics, and when the
// request context is cancelled between before phases. Panics are converted
// into [*PanicError] and returned; the first failure is also recorded on
// req so after phases can observe it.
func (c chain) run(req *Request, res *Response, final func() error) (err error) {
	entered := 0

	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
		if err != nil && req.err == nil {
			req.err = err
		}
		for i := entered - 1; i >= 0; i-- {
			if aerr := c[i].runAfter(req, res); aerr != nil && err == nil {
				err = aerr
				req.err = aerr
			}
		}
	}()

	for _, m := range c {
		if cerr := req.Context().Err(); cerr != nil {
			return cerr
		}
		entered++
		if m.before == nil {
			continue
		}
		if m.before(req, res, m.slice(req)) == Stop {
			res.End()
			return nil
		}
	}

	return final()
}

// runAfter calls the after phase, converting a panic into an error so the
// remaining after phases still run.
func (m *Middleware) runAfter(req *Request, res *Response) (err error) {
	if m.after == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: fmt.Errorf("middleware %s after phase: %v", m.name, rec), Stack: debug.Stack()}
		}
	}()
	m.after(req, res, m.slice(req))
	return nil
}
