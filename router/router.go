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
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// noopLogger is used when no logger is configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Router matches requests against registered rules and drives the
// middleware pipeline around the chosen handler.
//
// Thread safety: all routing state lives in an immutable snapshot. Each
// registration call (AddRoute, Mount, Use, Declare, CatchAll) copies the
// parts it changes, validates the whole batch and publishes the new snapshot
// with one atomic store. A failed batch publishes nothing. Writers are
// serialized by a mutex; Match and Handle load the snapshot without locking,
// so registering while serving is safe.
type Router struct {
	mu  sync.Mutex
	tbl atomic.Pointer[table]

	logger        *slog.Logger
	diagnostics   DiagnosticHandler
	observability ObservabilityRecorder
	errorHandler  ErrorHandler
	upgrader      *websocket.Upgrader
	realIP        *realIPConfig
	realIPErr     error

	enableH2C      bool
	serverTimeouts *serverTimeouts
	serverMu       sync.Mutex
	server         *http.Server
}

// New creates a router.
//
// Example:
//
//	r, err := router.New(router.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
func New(opts ...Option) (*Router, error) {
	r := &Router{
		logger:   noopLogger,
		upgrader: &websocket.Upgrader{},
	}
	r.tbl.Store(newTable())

	for _, opt := range opts {
		opt(r)
	}

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("router configuration validation failed: %w", err)
	}
	if r.errorHandler == nil {
		r.errorHandler = r.defaultErrorHandler
	}

	return r, nil
}

// MustNew is like [New] but panics on an invalid configuration.
func MustNew(opts ...Option) *Router {
	r, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("router.MustNew: %v", err))
	}
	return r
}

func (r *Router) validate() error {
	if r.logger == nil {
		r.logger = noopLogger
	}
	if r.upgrader == nil {
		r.upgrader = &websocket.Upgrader{}
	}
	if r.realIPErr != nil {
		return r.realIPErr
	}
	if t := r.serverTimeouts; t != nil {
		if t.readHeader <= 0 || t.read <= 0 || t.write <= 0 || t.idle <= 0 {
			return ErrServerTimeoutInvalid
		}
	}
	return nil
}

// update runs fn against a private copy of the current snapshot and
// publishes the copy only if fn succeeds.
func (r *Router) update(fn func(t *table) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.tbl.Load().clone()
	if err := fn(next); err != nil {
		return err
	}
	r.tbl.Store(next)
	return nil
}

// AddRoute registers handler for methods on template.
//
// handler is either a [Handler] (for instance from [Handle1]) or a function
// following one of the shapes accepted by [Func]. Errors wrap
// [ErrMalformedTemplate], [ErrHandlerSignatureMismatch], [ErrDuplicateRoute],
// [ErrUnknownMiddleware], [ErrInvalidMethodSet], [ErrNilHandler] or
// [ErrRuleNameTaken]; on error nothing is registered.
func (r *Router) AddRoute(methods MethodSet, template string, handler any, opts ...RuleOption) (*Rule, error) {
	rules, err := r.commit([]routeSpec{{
		methods:  methods,
		template: template,
		handler:  handler,
		opts:     opts,
	}}, nil)
	if err != nil {
		return nil, err
	}
	return rules[0], nil
}

// commit registers a batch of routes and catch-alls atomically.
func (r *Router) commit(specs []routeSpec, catchAlls []catchAllSpec) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(specs))
	err := r.update(func(t *table) error {
		for _, spec := range specs {
			rule, err := t.add(spec)
			if err != nil {
				return fmt.Errorf("router: %s %s: %w", spec.methods, displayTemplate(spec), err)
			}
			rules = append(rules, rule)
		}
		for _, spec := range catchAlls {
			if err := t.addCatchAll(spec); err != nil {
				return fmt.Errorf("router: catch-all %s: %w", segmentsString(spec.prefix), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		r.logger.Debug("route registered",
			"id", rule.id,
			"methods", rule.methods.String(),
			"template", rule.template.String(),
			"kind", rule.kind.String(),
		)
		r.emit(DiagRouteRegistered, "route registered", map[string]any{
			"id":       rule.id,
			"methods":  rule.methods.String(),
			"template": rule.template.String(),
		})
		if n := len(rule.template.params); n > 8 {
			r.emit(DiagHighParamCount, "route has many parameters", map[string]any{
				"template": rule.template.String(),
				"count":    n,
			})
		}
	}
	return rules, nil
}

func displayTemplate(spec routeSpec) string {
	if len(spec.prefix) == 0 {
		return spec.template
	}
	return segmentsString(spec.prefix) + spec.template
}

func segmentsString(segs []Segment) string {
	return Template{segments: segs}.String()
}

// mustRoute panics with the registration error; startup code uses the
// method helpers so a bad route aborts the program.
func (r *Router) mustRoute(m Method, template string, handler any, opts []RuleOption) *Rule {
	rule, err := r.AddRoute(Methods(m), template, handler, opts...)
	if err != nil {
		panic(err)
	}
	return rule
}

// GET registers a GET rule and panics on registration errors.
func (r *Router) GET(template string, handler any, opts ...RuleOption) *Rule {
	return r.mustRoute(MethodGet, template, handler, opts)
}

// HEAD registers a HEAD rule and panics on registration errors.
func (r *Router) HEAD(template string, handler any, opts ...RuleOption) *Rule {
	return r.mustRoute(MethodHead, template, handler, opts)
}

// POST registers a POST rule and panics on registration errors.
func (r *Router) POST(template string, handler any, opts ...RuleOption) *Rule {
	return r.mustRoute(MethodPost, template, handler, opts)
}

// PUT registers a PUT rule and panics on registration errors.
func (r *Router) PUT(template string, handler any, opts ...RuleOption) *Rule {
	return r.mustRoute(MethodPut, template, handler, opts)
}

// PATCH registers a PATCH rule and panics on registration errors.
func (r *Router) PATCH(template string, handler any, opts ...RuleOption) *Rule {
	return r.mustRoute(MethodPatch, template, handler, opts)
}

// DELETE registers a DELETE rule and panics on registration errors.
func (r *Router) DELETE(template string, handler any, opts ...RuleOption) *Rule {
	return r.mustRoute(MethodDelete, template, handler, opts)
}

// OPTIONS registers an OPTIONS rule and panics on registration errors.
// Paths without an OPTIONS rule are answered automatically.
func (r *Router) OPTIONS(template string, handler any, opts ...RuleOption) *Rule {
	return r.mustRoute(MethodOptions, template, handler, opts)
}

// Use appends global middleware. Global middleware run on every request,
// matched or not, before any rule-local middleware.
func (r *Router) Use(mws ...*Middleware) {
	for _, m := range mws {
		if m == nil {
			panic("router: Use called with nil middleware")
		}
	}
	_ = r.update(func(t *table) error {
		t.global = append(t.global, mws...)
		return nil
	})
	for _, m := range mws {
		r.logger.Debug("global middleware registered", "name", m.name)
	}
}

// Declare makes middleware available to rules and blueprints by name.
// Declared middleware only run where a rule references them.
func (r *Router) Declare(mws ...*Middleware) error {
	return r.update(func(t *table) error {
		declared := maps.Clone(t.declared)
		for _, m := range mws {
			if m == nil {
				return fmt.Errorf("%w: nil middleware", ErrUnknownMiddleware)
			}
			if _, dup := declared[m.name]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateMiddleware, m.name)
			}
			declared[m.name] = m
		}
		t.declared = declared
		return nil
	})
}

// CatchAll installs the handler for requests no rule matches. Blueprint
// catch-alls take precedence below their prefix. The handler must not bind
// parameters; the response starts as a 404 with an empty body.
func (r *Router) CatchAll(handler any) error {
	_, err := r.commit(nil, []catchAllSpec{{handler: handler}})
	return err
}

// Match resolves method and path without running anything.
// Repeated calls against the same registrations return equal results.
func (r *Router) Match(method Method, path string) Result {
	return r.tbl.Load().match(method, path)
}

// Handle routes req, runs the middleware pipeline and the handler, and
// fills in res. The returned error is the handler or middleware failure, if
// any, after every after phase has run; transports turn it into a response.
//
// Routing outcomes:
//   - Matched: global and rule-local middleware, then the handler.
//   - MethodNotAllowed: 405 with an Allow header, or 204 for OPTIONS.
//   - NotFound: the matching catch-all, or 404 with an empty body.
//
// Global middleware run for every outcome.
func (r *Router) Handle(req *Request, res *Response) error {
	t := r.tbl.Load()
	result := t.match(req.Method, req.Path)
	req.outcome = result.Outcome
	req.router = r

	if req.Method == MethodHead {
		res.skipBody = true
	}

	c := t.global
	var final func() error

	switch result.Outcome {
	case Matched:
		rule := result.Rule
		req.rule = rule
		req.args = result.Args
		req.headFallback = result.HeadFallback
		if len(rule.chain) > 0 {
			c = append(slices.Clip(c), rule.chain...)
		}
		final = func() error { return rule.invoke(req, res) }

	case MethodNotAllowed:
		allowed := result.Allowed
		if req.Method == MethodOptions {
			final = func() error {
				res.reset(http.StatusNoContent)
				res.header.Set("Allow", optionsAllow(allowed))
				res.End()
				return nil
			}
			break
		}
		final = func() error {
			res.reset(http.StatusMethodNotAllowed)
			res.header.Set("Allow", allowed.String())
			res.End()
			return nil
		}

	default:
		if req.Method == MethodOptions && (req.Path == "*" || req.Path == "/*") {
			inUse := t.inUse
			final = func() error {
				res.reset(http.StatusNoContent)
				res.header.Set("Allow", optionsAllow(inUse))
				res.End()
				return nil
			}
			break
		}
		if ca, ok := t.catchAllFor(req.Path); ok {
			if len(ca.chain) > 0 {
				c = append(slices.Clip(c), ca.chain...)
			}
			final = func() error {
				res.reset(http.StatusNotFound)
				return ca.handler.Serve(req, res, nil)
			}
			break
		}
		final = func() error {
			res.reset(http.StatusNotFound)
			res.End()
			return nil
		}
	}

	return c.run(req, res, final)
}

// optionsAllow renders the Allow header of an automatic OPTIONS reply.
func optionsAllow(s MethodSet) string {
	s = s.Add(MethodOptions)
	if s.Has(MethodGet) {
		s = s.Add(MethodHead)
	}
	return s.String()
}

// Rules returns every registered rule in id order.
func (r *Router) Rules() []*Rule {
	return slices.Clone(r.tbl.Load().rules)
}

// Rule returns the rule with id, if any.
func (r *Router) Rule(id int) (*Rule, bool) {
	rules := r.tbl.Load().rules
	if id < 0 || id >= len(rules) {
		return nil, false
	}
	return rules[id], true
}

// Lookup returns the rule registered under name.
func (r *Router) Lookup(name string) (*Rule, bool) {
	rule, ok := r.tbl.Load().names[name]
	return rule, ok
}

// URL builds the path of the named rule from parameter values.
func (r *Router) URL(name string, args ...any) (string, error) {
	rule, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: no rule named %q", ErrRuleArgs, name)
	}
	return rule.URL(args...)
}

// Middleware returns the names of the global middleware in run order.
func (r *Router) Middleware() []string {
	global := r.tbl.Load().global
	names := make([]string, len(global))
	for i, m := range global {
		names[i] = m.name
	}
	return names
}

func (r *Router) emit(kind DiagnosticKind, message string, fields map[string]any) {
	if r.diagnostics != nil {
		r.diagnostics.OnDiagnostic(DiagnosticEvent{
			Kind:    kind,
			Message: message,
			Fields:  fields,
		})
	}
}
