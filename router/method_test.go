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

//go:build !integration

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Method
	}{
		{"GET", MethodGet},
		{"HEAD", MethodHead},
		{"POST", MethodPost},
		{"PUT", MethodPut},
		{"PATCH", MethodPatch},
		{"DELETE", MethodDelete},
		{"CONNECT", MethodConnect},
		{"OPTIONS", MethodOptions},
		{"TRACE", MethodTrace},
		{"get", MethodUnknown},
		{"PURGE", MethodUnknown},
		{"", MethodUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseMethod(tt.in))
		})
	}
}

func TestMethodSet(t *testing.T) {
	t.Parallel()

	s := Methods(MethodPost, MethodGet, MethodUnknown)
	assert.True(t, s.Has(MethodGet))
	assert.True(t, s.Has(MethodPost))
	assert.False(t, s.Has(MethodPut))
	assert.False(t, s.Has(MethodUnknown))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "GET, POST", s.String())
	assert.Equal(t, []Method{MethodGet, MethodPost}, s.Slice())

	assert.True(t, s.Overlaps(Methods(MethodPost, MethodDelete)))
	assert.False(t, s.Overlaps(Methods(MethodDelete)))
	assert.Equal(t, "GET, POST, DELETE", s.Union(Methods(MethodDelete)).String())

	var empty MethodSet
	assert.True(t, empty.Empty())
	assert.Empty(t, empty.String())
	assert.Equal(t, "UNKNOWN", Method(200).String())
}
