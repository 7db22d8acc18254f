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
	"maps"
	"slices"
)

// node is one segment position of the routing trie.
//
// Thread safety: nodes are never mutated once they are reachable from a
// published snapshot. insert copies every node on the path it changes and
// returns a new root, so readers walking the previous root are unaffected.
type node struct {
	// literals holds exact, case-sensitive segment matches.
	literals map[string]*node

	// params holds one child per single-segment parameter kind, indexed by ParamKind.
	params [scalarKinds]*node

	// rest is the <path> child. It is always a leaf.
	rest *node

	// terminals pairs method sets with the rules registered at this position.
	// Method sets of one node never overlap.
	terminals []terminal
}

type terminal struct {
	methods MethodSet
	rule    int
}

// clone returns a shallow copy of n, or a fresh node when n is nil.
// Maps and slices stay shared until the caller replaces them.
func (n *node) clone() *node {
	if n == nil {
		return &node{}
	}
	c := *n
	return &c
}

// insert returns a copy of the trie rooted at n with the segments registered
// for rule under methods. n itself is left untouched, so a failed insert
// leaves the original trie exactly as it was.
func (n *node) insert(segs []Segment, methods MethodSet, rule int) (*node, error) {
	c := n.clone()

	if len(segs) == 0 {
		for _, t := range c.terminals {
			if t.methods.Overlaps(methods) {
				return nil, fmt.Errorf("%w: rule %d already serves %s", ErrDuplicateRoute, t.rule, t.methods&methods)
			}
		}
		c.terminals = append(slices.Clip(c.terminals), terminal{methods: methods, rule: rule})
		return c, nil
	}

	seg := segs[0]
	switch {
	case seg.Kind == SegmentLiteral:
		child, err := c.literals[seg.Literal].insert(segs[1:], methods, rule)
		if err != nil {
			return nil, err
		}
		lits := make(map[string]*node, len(c.literals)+1)
		maps.Copy(lits, c.literals)
		lits[seg.Literal] = child
		c.literals = lits

	case seg.Param == ParamPath:
		child, err := c.rest.insert(segs[1:], methods, rule)
		if err != nil {
			return nil, err
		}
		c.rest = child

	default:
		child, err := c.params[seg.Param].insert(segs[1:], methods, rule)
		if err != nil {
			return nil, err
		}
		c.params[seg.Param] = child
	}

	return c, nil
}

// span locates one non-empty segment inside a request path.
type span struct {
	start, end int
}

// splitPath records the non-empty segments of path. Repeated and trailing
// slashes produce no segments; the text between them is never altered.
func splitPath(path string, buf []span) []span {
	buf = buf[:0]
	start := -1
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if start >= 0 {
				buf = append(buf, span{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		buf = append(buf, span{start, len(path)})
	}
	return buf
}

// matchState is the scratch space of one trie walk.
type matchState struct {
	path   string
	segs   []span
	method Method

	// args collects converted captures along the current descent.
	args []any

	// allowed accumulates the method sets of every terminal reached by the
	// path that did not serve method.
	allowed MethodSet
}

// match walks the trie depth first in priority order: literal, then
// int, uint, float and string parameters, then the <path> remainder.
// A branch that reaches a terminal without a rule for the requested method
// backtracks so lower-priority branches still get a chance.
func (n *node) match(st *matchState, i int) (int, bool) {
	if i == len(st.segs) {
		for _, t := range n.terminals {
			if t.methods.Has(st.method) {
				return t.rule, true
			}
		}
		for _, t := range n.terminals {
			st.allowed |= t.methods
		}
		return -1, false
	}

	seg := st.path[st.segs[i].start:st.segs[i].end]

	if child := n.literals[seg]; child != nil {
		if rule, ok := child.match(st, i+1); ok {
			return rule, true
		}
	}

	for kind, child := range n.params {
		if child == nil {
			continue
		}
		v, ok := parseParam(ParamKind(kind), seg)
		if !ok {
			continue
		}
		st.args = append(st.args, v)
		if rule, ok := child.match(st, i+1); ok {
			return rule, true
		}
		st.args = st.args[:len(st.args)-1]
	}

	if n.rest != nil {
		st.args = append(st.args, st.path[st.segs[i].start:st.segs[len(st.segs)-1].end])
		if rule, ok := n.rest.match(st, len(st.segs)); ok {
			return rule, true
		}
		st.args = st.args[:len(st.args)-1]
	}

	return -1, false
}
