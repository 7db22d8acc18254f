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

package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crest.dev/router"
)

func TestSimple_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		formatter  *Simple
		err        error
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name:       "internal error",
			formatter:  NewSimple(),
			err:        &testError{message: "nil pointer"},
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"error": "Internal Server Error"},
		},
		{
			name:       "exposed internal error",
			formatter:  &Simple{ExposeInternal: true},
			err:        &testError{message: "nil pointer"},
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"error": "nil pointer"},
		},
		{
			name:       "with status",
			formatter:  NewSimple(),
			err:        &testErrorWithStatus{message: "missing", status: http.StatusNotFound},
			wantStatus: http.StatusNotFound,
			wantBody:   map[string]any{"error": "missing"},
		},
		{
			name:       "with code",
			formatter:  &Simple{StatusResolver: func(error) int { return http.StatusBadRequest }},
			err:        &testErrorWithCode{message: "bad", code: "BAD_INPUT"},
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"error": "bad", "code": "BAD_INPUT"},
		},
		{
			name:       "with details",
			formatter:  &Simple{StatusResolver: func(error) int { return http.StatusBadRequest }},
			err:        &testErrorWithDetails{message: "bad", details: map[string]any{"field": "email"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"error": "bad", "details": map[string]any{"field": "email"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := tt.formatter.Format(router.NewRequest("GET", "/"), tt.err)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, "application/json; charset=utf-8", out.ContentType)
			body, ok := out.Body.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
