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
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Blueprint groups routes under a literal path prefix.
//
// A blueprint only records registrations; nothing reaches a router until
// [Router.Mount], which validates the blueprint and all of its children and
// installs them as one batch. Blueprints nest: a child's prefix, middleware
// and catch-all apply below its parent's.
//
// Example:
//
//	api := router.NewBlueprint("api")
//	v1 := router.NewBlueprint("v1").Use("auth")
//	v1.GET("/users/<int>", getUser)
//	api.Register(v1)
//
//	if err := r.Mount(api); err != nil { // GET /api/v1/users/<int>
//	    log.Fatal(err)
//	}
type Blueprint struct {
	prefix     string
	segments   []Segment
	routes     []routeSpec
	children   []*Blueprint
	middleware []string
	catchAll   any
	err        error
}

// NewBlueprint creates a blueprint for prefix. Leading and trailing slashes
// are ignored; "api/v1" adds two literal segments. Parameters are not
// allowed in a prefix.
func NewBlueprint(prefix string) *Blueprint {
	b := &Blueprint{prefix: strings.Trim(prefix, "/")}
	if b.prefix == "" {
		b.err = fmt.Errorf("%w: blueprint prefix must not be empty", ErrMalformedTemplate)
		return b
	}
	tpl, err := ParseTemplate("/" + b.prefix)
	if err != nil {
		b.err = err
		return b
	}
	if len(tpl.params) > 0 {
		b.err = fmt.Errorf("%w: blueprint prefix %q must be literal", ErrMalformedTemplate, prefix)
		return b
	}
	b.segments = tpl.segments
	return b
}

// Prefix returns the blueprint's own prefix without slashes.
func (b *Blueprint) Prefix() string { return b.prefix }

// AddRoute records a rule relative to the blueprint prefix.
func (b *Blueprint) AddRoute(methods MethodSet, template string, handler any, opts ...RuleOption) *Blueprint {
	b.routes = append(b.routes, routeSpec{
		methods:  methods,
		template: template,
		handler:  handler,
		opts:     opts,
	})
	return b
}

// GET records a GET rule.
func (b *Blueprint) GET(template string, handler any, opts ...RuleOption) *Blueprint {
	return b.AddRoute(Methods(MethodGet), template, handler, opts...)
}

// POST records a POST rule.
func (b *Blueprint) POST(template string, handler any, opts ...RuleOption) *Blueprint {
	return b.AddRoute(Methods(MethodPost), template, handler, opts...)
}

// PUT records a PUT rule.
func (b *Blueprint) PUT(template string, handler any, opts ...RuleOption) *Blueprint {
	return b.AddRoute(Methods(MethodPut), template, handler, opts...)
}

// PATCH records a PATCH rule.
func (b *Blueprint) PATCH(template string, handler any, opts ...RuleOption) *Blueprint {
	return b.AddRoute(Methods(MethodPatch), template, handler, opts...)
}

// DELETE records a DELETE rule.
func (b *Blueprint) DELETE(template string, handler any, opts ...RuleOption) *Blueprint {
	return b.AddRoute(Methods(MethodDelete), template, handler, opts...)
}

// WebSocket records a WebSocket rule.
func (b *Blueprint) WebSocket(template string, h WebSocketHandler, opts ...RuleOption) *Blueprint {
	b.routes = append(b.routes, routeSpec{
		methods:  Methods(MethodGet),
		template: template,
		ws:       h,
		opts:     opts,
	})
	return b
}

// Use attaches declared middleware to every rule of the blueprint and its
// children. They run after global middleware and before rule-local ones.
func (b *Blueprint) Use(names ...string) *Blueprint {
	b.middleware = append(b.middleware, names...)
	return b
}

// CatchAll sets the handler for unmatched requests below the prefix.
func (b *Blueprint) CatchAll(handler any) *Blueprint {
	b.catchAll = handler
	return b
}

// Register nests child below b.
func (b *Blueprint) Register(child *Blueprint) *Blueprint {
	if child == b {
		b.err = errors.Join(b.err, fmt.Errorf("%w: blueprint %q cannot contain itself", ErrMalformedTemplate, b.prefix))
		return b
	}
	b.children = append(b.children, child)
	return b
}

// flatten expands the blueprint tree into pending registrations.
func (b *Blueprint) flatten(prefix []Segment, inherited []string, seen map[*Blueprint]bool, specs *[]routeSpec, cas *[]catchAllSpec) error {
	if b == nil {
		return fmt.Errorf("%w: nil blueprint", ErrMalformedTemplate)
	}
	if seen[b] {
		return fmt.Errorf("%w: blueprint %q registered twice", ErrDuplicateRoute, b.prefix)
	}
	seen[b] = true
	if b.err != nil {
		return b.err
	}

	full := append(slices.Clip(prefix), b.segments...)
	mws := append(slices.Clip(inherited), b.middleware...)
	name := segmentsString(full)

	for _, spec := range b.routes {
		spec.prefix = full
		spec.inherited = mws
		spec.blueprint = name
		*specs = append(*specs, spec)
	}
	if b.catchAll != nil {
		*cas = append(*cas, catchAllSpec{prefix: full, handler: b.catchAll, middleware: mws})
	}
	for _, child := range b.children {
		if err := child.flatten(full, mws, seen, specs, cas); err != nil {
			return err
		}
	}
	return nil
}

// Mount installs blueprints. Every route of every blueprint and child is
// validated; if any fails, nothing is installed.
func (r *Router) Mount(bps ...*Blueprint) error {
	var specs []routeSpec
	var cas []catchAllSpec
	seen := map[*Blueprint]bool{}
	for _, b := range bps {
		if err := b.flatten(nil, nil, seen, &specs, &cas); err != nil {
			return fmt.Errorf("router: mount: %w", err)
		}
	}

	rules, err := r.commit(specs, cas)
	if err != nil {
		return err
	}
	for _, b := range bps {
		r.emit(DiagBlueprintMounted, "blueprint mounted", map[string]any{
			"prefix": b.prefix,
			"rules":  len(rules),
		})
	}
	return nil
}
