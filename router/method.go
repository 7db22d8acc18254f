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
	"math/bits"
	"net/http"
	"strings"
)

// Method identifies an HTTP request method.
// Anything outside the standard verbs parses to [MethodUnknown].
type Method uint8

const (
	MethodGet Method = iota
	MethodHead
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodUnknown
)

// standardMethods lists the verbs that may appear in a [MethodSet], in Allow header order.
var standardMethods = [...]Method{
	MethodGet, MethodHead, MethodPost, MethodPut, MethodPatch,
	MethodDelete, MethodConnect, MethodOptions, MethodTrace,
}

var methodNames = [...]string{
	MethodGet:     http.MethodGet,
	MethodHead:    http.MethodHead,
	MethodPost:    http.MethodPost,
	MethodPut:     http.MethodPut,
	MethodPatch:   http.MethodPatch,
	MethodDelete:  http.MethodDelete,
	MethodConnect: http.MethodConnect,
	MethodOptions: http.MethodOptions,
	MethodTrace:   http.MethodTrace,
	MethodUnknown: "UNKNOWN",
}

// ParseMethod maps a request method token to a [Method].
// Method tokens are case-sensitive, as in RFC 9110.
func ParseMethod(s string) Method {
	switch s {
	case http.MethodGet:
		return MethodGet
	case http.MethodHead:
		return MethodHead
	case http.MethodPost:
		return MethodPost
	case http.MethodPut:
		return MethodPut
	case http.MethodPatch:
		return MethodPatch
	case http.MethodDelete:
		return MethodDelete
	case http.MethodConnect:
		return MethodConnect
	case http.MethodOptions:
		return MethodOptions
	case http.MethodTrace:
		return MethodTrace
	default:
		return MethodUnknown
	}
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return methodNames[MethodUnknown]
}

// MethodSet is a set of standard methods. The zero value is empty.
// MethodUnknown is never a member.
type MethodSet uint16

// Methods builds a set from the given methods, ignoring MethodUnknown.
func Methods(ms ...Method) MethodSet {
	var s MethodSet
	for _, m := range ms {
		s = s.Add(m)
	}
	return s
}

// Add returns s with m added.
func (s MethodSet) Add(m Method) MethodSet {
	if m >= MethodUnknown {
		return s
	}
	return s | 1<<m
}

// Has reports whether m is in s.
func (s MethodSet) Has(m Method) bool {
	return m < MethodUnknown && s&(1<<m) != 0
}

// Union returns the methods present in either set.
func (s MethodSet) Union(o MethodSet) MethodSet { return s | o }

// Overlaps reports whether the sets share a method.
func (s MethodSet) Overlaps(o MethodSet) bool { return s&o != 0 }

// Empty reports whether s has no members.
func (s MethodSet) Empty() bool { return s == 0 }

// Len returns the number of methods in s.
func (s MethodSet) Len() int { return bits.OnesCount16(uint16(s)) }

// Slice returns the members of s in canonical order.
func (s MethodSet) Slice() []Method {
	out := make([]Method, 0, s.Len())
	for _, m := range standardMethods {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// String renders s as an Allow header value, e.g. "GET, POST".
func (s MethodSet) String() string {
	var b strings.Builder
	for _, m := range standardMethods {
		if !s.Has(m) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.String())
	}
	return b.String()
}
