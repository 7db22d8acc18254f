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
	"net/http"
)

// Route pattern sentinels reported to [ObservabilityRecorder.OnRequestEnd]
// when no rule matched. Using them instead of raw paths keeps label
// cardinality bounded.
const (
	PatternNotFound         = "_not_found"
	PatternMethodNotAllowed = "_method_not_allowed"
)

// ObservabilityRecorder provides lifecycle hooks around each HTTP request
// served through [Router.ServeHTTP]. The metrics and tracing packages
// implement it.
//
// Lifecycle:
//  1. OnRequestStart(ctx, req) returns an enriched context and an opaque
//     state. The enriched context is always used.
//  2. If state is non-nil the writer is wrapped with WrapResponseWriter.
//  3. The router handles the request.
//  4. If state is non-nil, OnRequestEnd receives the state, the final writer
//     and the matched route pattern (or a sentinel).
//
// Thread safety: all methods must be safe for concurrent use.
type ObservabilityRecorder interface {
	OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any)
	WrapResponseWriter(w http.ResponseWriter, state any) http.ResponseWriter
	OnRequestEnd(ctx context.Context, state any, writer http.ResponseWriter, routePattern string)
}

// ResponseInfo is implemented by wrapped writers that track response metadata.
type ResponseInfo interface {
	StatusCode() int
	Size() int64
}

// routePattern returns the label for a handled request.
func routePattern(req *Request) string {
	if p := req.RoutePattern(); p != "" {
		return p
	}
	if req.outcome == MethodNotAllowed {
		return PatternMethodNotAllowed
	}
	return PatternNotFound
}

// recorders fans lifecycle hooks out to several recorders.
type recorders []ObservabilityRecorder

type recordersState struct {
	states []any
}

// CombineRecorders returns a recorder calling each non-nil recorder in
// order. End hooks run in reverse order so spans close after metrics.
func CombineRecorders(rs ...ObservabilityRecorder) ObservabilityRecorder {
	var out recorders
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

func (rs recorders) OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any) {
	st := &recordersState{states: make([]any, len(rs))}
	active := false
	for i, r := range rs {
		var s any
		ctx, s = r.OnRequestStart(ctx, req)
		if ctx != req.Context() {
			req = req.WithContext(ctx)
		}
		st.states[i] = s
		active = active || s != nil
	}
	if !active {
		return ctx, nil
	}
	return ctx, st
}

func (rs recorders) WrapResponseWriter(w http.ResponseWriter, state any) http.ResponseWriter {
	st, ok := state.(*recordersState)
	if !ok {
		return w
	}
	for i, r := range rs {
		if st.states[i] != nil {
			w = r.WrapResponseWriter(w, st.states[i])
		}
	}
	return w
}

func (rs recorders) OnRequestEnd(ctx context.Context, state any, writer http.ResponseWriter, pattern string) {
	st, ok := state.(*recordersState)
	if !ok {
		return
	}
	for i := len(rs) - 1; i >= 0; i-- {
		if st.states[i] != nil {
			rs[i].OnRequestEnd(ctx, st.states[i], writer, pattern)
		}
	}
}
