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
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Outcome discriminates a routing [Result].
type Outcome uint8

const (
	NotFound Outcome = iota
	Matched
	MethodNotAllowed
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case MethodNotAllowed:
		return "method_not_allowed"
	default:
		return "not_found"
	}
}

// Result is the outcome of matching one method and path.
//
// For Matched, Rule and Args are set and Allowed is the rule's method set.
// For MethodNotAllowed, Allowed holds every method some rule serves for the
// path. NotFound carries nothing.
type Result struct {
	Outcome Outcome
	Rule    *Rule
	Args    []any
	Allowed MethodSet

	// HeadFallback is set when a HEAD request matched a GET rule.
	HeadFallback bool
}

// RuleID returns the matched rule's id, or -1.
func (r Result) RuleID() int {
	if r.Rule == nil {
		return -1
	}
	return r.Rule.id
}

// table is an immutable routing snapshot. Registration builds a modified
// copy and publishes it with a single atomic store.
type table struct {
	root     *node
	rules    []*Rule
	names    map[string]*Rule
	global   chain
	declared map[string]*Middleware
	catchAll []catchAll
	inUse    MethodSet
}

// catchAll answers NotFound requests below a literal prefix.
type catchAll struct {
	prefix  []Segment
	handler Handler
	chain   chain
}

func newTable() *table {
	return &table{
		root:     &node{},
		names:    map[string]*Rule{},
		declared: map[string]*Middleware{},
	}
}

// clone copies the snapshot header. Slices are clipped so appends reallocate;
// maps are copied by the methods that change them.
func (t *table) clone() *table {
	c := *t
	c.rules = slices.Clip(c.rules)
	c.global = slices.Clip(c.global)
	c.catchAll = slices.Clip(c.catchAll)
	return &c
}

// routeSpec is a pending registration.
type routeSpec struct {
	methods   MethodSet
	template  string
	handler   any
	ws        WebSocketHandler
	opts      []RuleOption
	prefix    []Segment
	inherited []string
	blueprint string
}

// catchAllSpec is a pending catch-all registration.
type catchAllSpec struct {
	prefix     []Segment
	handler    any
	middleware []string
}

// add validates spec and inserts it into t. t must be a private clone.
func (t *table) add(spec routeSpec) (*Rule, error) {
	if spec.methods.Empty() {
		return nil, fmt.Errorf("%w: no standard method given", ErrInvalidMethodSet)
	}

	tpl, err := ParseTemplate(spec.template)
	if err != nil {
		return nil, err
	}
	tpl = joinTemplates(spec.prefix, tpl)

	cfg := ruleConfig{}
	for _, opt := range spec.opts {
		opt(&cfg)
	}

	rule := &Rule{
		id:        len(t.rules),
		template:  tpl,
		methods:   spec.methods,
		name:      cfg.name,
		blueprint: spec.blueprint,
		local:     append(slices.Clone(spec.inherited), cfg.middleware...),
	}

	if spec.ws != nil {
		rule.kind = KindWebSocket
		rule.ws = spec.ws
	} else {
		h, kind, err := resolveHandler(spec.handler)
		if err != nil {
			return nil, err
		}
		if err := checkSignature(tpl.params, h.Params()); err != nil {
			return nil, err
		}
		rule.handler = h
		rule.kind = kind
	}

	if rule.chain, err = t.resolve(rule.local); err != nil {
		return nil, err
	}

	if rule.name != "" {
		if prev, taken := t.names[rule.name]; taken {
			return nil, fmt.Errorf("%w: %q is used by %s", ErrRuleNameTaken, rule.name, prev.template)
		}
	}

	root, err := t.root.insert(tpl.segments, rule.methods, rule.id)
	if err != nil {
		return nil, err
	}

	t.root = root
	t.rules = append(t.rules, rule)
	t.inUse |= rule.methods
	if rule.name != "" {
		names := maps.Clone(t.names)
		names[rule.name] = rule
		t.names = names
	}
	return rule, nil
}

// addCatchAll validates and installs a catch-all. t must be a private clone.
func (t *table) addCatchAll(spec catchAllSpec) error {
	h, _, err := resolveHandler(spec.handler)
	if err != nil {
		return err
	}
	if err := checkSignature(nil, h.Params()); err != nil {
		return err
	}
	c, err := t.resolve(spec.middleware)
	if err != nil {
		return err
	}

	entry := catchAll{prefix: spec.prefix, handler: h, chain: c}
	t.catchAll = slices.Clone(t.catchAll)
	i := slices.IndexFunc(t.catchAll, func(e catchAll) bool {
		return slices.Equal(e.prefix, spec.prefix)
	})
	if i >= 0 {
		t.catchAll[i] = entry
	} else {
		t.catchAll = append(t.catchAll, entry)
	}
	// Deepest prefix first.
	slices.SortStableFunc(t.catchAll, func(a, b catchAll) int {
		return cmp.Compare(len(b.prefix), len(a.prefix))
	})
	return nil
}

// resolve maps declared middleware names to instances.
func (t *table) resolve(names []string) (chain, error) {
	if len(names) == 0 {
		return nil, nil
	}
	c := make(chain, 0, len(names))
	for _, name := range names {
		m, ok := t.declared[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMiddleware, name)
		}
		c = append(c, m)
	}
	return c, nil
}

// match resolves method and path against the snapshot.
func (t *table) match(method Method, path string) Result {
	var buf [16]span
	st := matchState{
		path:   path,
		segs:   splitPath(path, buf[:0]),
		method: method,
	}

	if id, ok := t.root.match(&st, 0); ok {
		rule := t.rules[id]
		return Result{Outcome: Matched, Rule: rule, Args: st.args, Allowed: rule.methods}
	}

	if method == MethodHead {
		st.method = MethodGet
		st.args = st.args[:0]
		if id, ok := t.root.match(&st, 0); ok {
			rule := t.rules[id]
			return Result{Outcome: Matched, Rule: rule, Args: st.args, Allowed: rule.methods, HeadFallback: true}
		}
	}

	if st.allowed.Empty() {
		return Result{Outcome: NotFound}
	}
	return Result{Outcome: MethodNotAllowed, Allowed: st.allowed}
}

// catchAllFor returns the deepest catch-all whose prefix matches path.
func (t *table) catchAllFor(path string) (catchAll, bool) {
	if len(t.catchAll) == 0 {
		return catchAll{}, false
	}
	var buf [16]span
	segs := splitPath(path, buf[:0])
	for _, c := range t.catchAll {
		if len(c.prefix) > len(segs) {
			continue
		}
		ok := true
		for i, s := range c.prefix {
			if path[segs[i].start:segs[i].end] != s.Literal {
				ok = false
				break
			}
		}
		if ok {
			return c, true
		}
	}
	return catchAll{}, false
}
