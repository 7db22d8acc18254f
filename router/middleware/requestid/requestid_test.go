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

package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crest.dev/router"
	"crest.dev/router/middleware"
)

func newRouter(t *testing.T, mw *router.Middleware) *router.Router {
	t.Helper()
	r := router.MustNew()
	r.Use(mw)
	r.GET("/test", router.Handle0(func(req *router.Request, res *router.Response) error {
		res.Text(http.StatusOK, Get(req, mw)+"|"+middleware.RequestID(req.Context()))
		return nil
	}))
	return r
}

func TestRequestID_GeneratesUUIDv7(t *testing.T) {
	t.Parallel()

	r := newRouter(t, New())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	id := w.Header().Get("X-Request-ID")
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Equal(t, id+"|"+id, w.Body.String(), "slice and context carry the same id")
}

func TestRequestID_ULID(t *testing.T) {
	t.Parallel()

	r := newRouter(t, New(WithULID()))

	var ids []string
	for range 5 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		id := w.Header().Get("X-Request-ID")
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i], "ULIDs are monotonic")
	}
}

func TestRequestID_ClientIDHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		opts         []Option
		clientID     string
		expectClient bool
	}{
		{name: "allowed", clientID: "client-123", expectClient: true},
		{name: "disallowed", opts: []Option{WithAllowClientID(false)}, clientID: "client-123"},
		{name: "too long", clientID: strings.Repeat("x", 200)},
		{name: "custom limit", opts: []Option{WithMaxLength(4)}, clientID: "abcde"},
		{name: "custom header", opts: []Option{WithHeader("X-Correlation-ID")}, clientID: "corr-1", expectClient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mw := New(tt.opts...)
			r := newRouter(t, mw)

			header := "X-Request-ID"
			if tt.name == "custom header" {
				header = "X-Correlation-ID"
			}
			hr := httptest.NewRequest(http.MethodGet, "/test", nil)
			hr.Header.Set(header, tt.clientID)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, hr)

			got := w.Header().Get(header)
			require.NotEmpty(t, got)
			if tt.expectClient {
				assert.Equal(t, tt.clientID, got)
			} else {
				assert.NotEqual(t, tt.clientID, got)
			}
		})
	}
}

func TestRequestID_CustomGenerator(t *testing.T) {
	t.Parallel()

	mw := New(WithGenerator(func() string { return "fixed" }))
	res := middleware.Do(newRouter(t, mw), router.NewRequest("GET", "/test"))
	assert.Equal(t, "fixed", res.Header().Get("X-Request-ID"))
	assert.Equal(t, "fixed|fixed", string(res.Body()))
}

func TestRequestID_SetOnNotFound(t *testing.T) {
	t.Parallel()

	mw := New(WithGenerator(func() string { return "nf" }))
	res := middleware.Do(newRouter(t, mw), router.NewRequest("GET", "/missing"))
	assert.Equal(t, http.StatusNotFound, res.Status())
	assert.Equal(t, "nf", res.Header().Get("X-Request-ID"))
}

func TestGet_WithoutMiddleware(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Get(router.NewRequest("GET", "/"), New()))
}
