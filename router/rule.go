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

import "slices"

// RuleKind discriminates how a rule dispatches.
type RuleKind uint8

const (
	// KindStatic rules use a generic adapter (Handle0..Handle3); their
	// parameter types are checked by the compiler and again at registration.
	KindStatic RuleKind = iota

	// KindDynamic rules use a reflective adapter checked at registration.
	KindDynamic

	// KindWebSocket rules mark the response as an upgrade and hand the
	// connection to a [WebSocketHandler].
	KindWebSocket
)

func (k RuleKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDynamic:
		return "dynamic"
	case KindWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// Rule is one registered binding of template, methods and handler.
// Rules are created by the router and never change afterwards.
type Rule struct {
	id        int
	template  Template
	methods   MethodSet
	kind      RuleKind
	handler   Handler
	ws        WebSocketHandler
	name      string
	blueprint string
	local     []string
	chain     chain
}

// ID returns the rule's stable identifier. Identifiers are dense and follow
// registration order.
func (r *Rule) ID() int { return r.id }

// Template returns the parsed template, including any blueprint prefix.
func (r *Rule) Template() Template { return r.template }

// Methods returns the methods the rule serves.
func (r *Rule) Methods() MethodSet { return r.methods }

// Kind returns the dispatch kind.
func (r *Rule) Kind() RuleKind { return r.kind }

// Name returns the rule name, or "" if unnamed.
func (r *Rule) Name() string { return r.name }

// Blueprint returns the prefix of the blueprint that registered the rule.
func (r *Rule) Blueprint() string { return r.blueprint }

// Middleware returns the names of the rule-local middleware in run order.
func (r *Rule) Middleware() []string { return slices.Clone(r.local) }

// URL builds a concrete path for this rule from parameter values.
func (r *Rule) URL(args ...any) (string, error) {
	return r.template.Build(args...)
}

// invoke runs the rule's handler, or marks the response for upgrade.
func (r *Rule) invoke(req *Request, res *Response) error {
	if r.kind == KindWebSocket {
		res.Upgrade(r.ws)
		return nil
	}
	return r.handler.Serve(req, res, req.args)
}

// RuleOption configures a rule at registration.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	name       string
	middleware []string
}

// WithName names the rule for [Router.Lookup] and [Router.URL].
func WithName(name string) RuleOption {
	return func(c *ruleConfig) {
		c.name = name
	}
}

// WithMiddleware attaches declared middleware to the rule, in order.
// Every name must have been passed to [Router.Declare] beforehand.
func WithMiddleware(names ...string) RuleOption {
	return func(c *ruleConfig) {
		c.middleware = append(c.middleware, names...)
	}
}
