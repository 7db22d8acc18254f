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
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is the parsed request handed to the router by a transport.
//
// The exported fields are owned by the transport. Routing state (matched
// rule, bound arguments, middleware slices) is filled in by [Router.Handle].
// A Request belongs to a single goroutine.
type Request struct {
	Method     Method
	RawMethod  string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
	Host       string

	ctx    context.Context
	http   *http.Request
	router *Router

	outcome      Outcome
	rule         *Rule
	args         []any
	headFallback bool
	slices       map[*Middleware]any
	err          error
}

// NewRequest builds a request for method and target, where target is a
// path with an optional query string. It is mostly useful in tests and
// non-HTTP transports.
func NewRequest(method, target string) *Request {
	req := &Request{
		Method:    ParseMethod(method),
		RawMethod: method,
		Path:      target,
		Header:    make(http.Header),
		Body:      http.NoBody,
		ctx:       context.Background(),
	}
	if path, query, ok := strings.Cut(target, "?"); ok {
		req.Path = path
		req.Query, _ = url.ParseQuery(query)
	}
	if req.Query == nil {
		req.Query = url.Values{}
	}
	return req
}

// FromHTTP adapts a net/http request.
func FromHTTP(r *http.Request) *Request {
	return &Request{
		Method:     ParseMethod(r.Method),
		RawMethod:  r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		Header:     r.Header,
		Body:       r.Body,
		RemoteAddr: r.RemoteAddr,
		Host:       r.Host,
		ctx:        r.Context(),
		http:       r,
	}
}

// Context returns the request context. It is never nil.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext replaces the request context in place.
// Middleware use it to attach values for later phases and the handler.
func (r *Request) WithContext(ctx context.Context) {
	if ctx == nil {
		panic("router: nil context")
	}
	r.ctx = ctx
	if r.http != nil {
		r.http = r.http.WithContext(ctx)
	}
}

// HTTP returns the underlying net/http request, or nil for requests built
// by other transports.
func (r *Request) HTTP() *http.Request { return r.http }

// Rule returns the matched rule, or nil when routing did not match.
func (r *Request) Rule() *Rule { return r.rule }

// Args returns the bound parameter values in template order.
// Values are int64, uint64, float64 or string according to the parameter kind.
func (r *Request) Args() []any { return r.args }

// Arg returns the i-th bound parameter, or nil if out of range.
func (r *Request) Arg(i int) any {
	if i < 0 || i >= len(r.args) {
		return nil
	}
	return r.args[i]
}

// Outcome returns how routing resolved the request.
func (r *Request) Outcome() Outcome { return r.outcome }

// HeadFallback reports whether a HEAD request is being served by a GET rule.
func (r *Request) HeadFallback() bool { return r.headFallback }

// Err returns the failure recorded for this request, if any: a handler
// error, a recovered panic ([*PanicError]) or a context error. After phases
// use it to observe how the request ended.
func (r *Request) Err() error { return r.err }

// ClientIP returns the client address without port. Forwarding headers
// are honored only when the router was built with [WithTrustedProxies] and
// the peer is one of the trusted proxies.
func (r *Request) ClientIP() string {
	if r.router == nil || r.router.realIP == nil {
		return peerIP(r.RemoteAddr)
	}
	ip, n := r.router.realIP.clientIP(r)
	if n > 0 {
		r.router.emit(DiagXFFSuspicious, "suspicious X-Forwarded-For chain", map[string]any{
			"remote":  r.RemoteAddr,
			"entries": n,
		})
	}
	return ip
}

// RoutePattern returns the canonical template of the matched rule, or an
// empty string when nothing matched.
func (r *Request) RoutePattern() string {
	if r.rule == nil {
		return ""
	}
	return r.rule.template.String()
}
