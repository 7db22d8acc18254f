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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHTTP(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.GET("/legacy", WrapHTTP(http.HandlerFunc(func(w http.ResponseWriter, hr *http.Request) {
		w.Header().Set("X-Legacy", hr.URL.Query().Get("q"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(hr.Host))
	})))

	t.Run("from a transport without net/http", func(t *testing.T) {
		t.Parallel()

		req := NewRequest(http.MethodGet, "/legacy?q=1")
		req.Host = "api.example"
		res := NewResponse()
		r.Dispatch(req, res)

		assert.Equal(t, http.StatusAccepted, res.Status())
		assert.Equal(t, "1", res.Header().Get("X-Legacy"))
		assert.Equal(t, "api.example", string(res.Body()))
	})

	t.Run("through ServeHTTP", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://svc.local/legacy?q=2", nil))

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-Legacy"))
		assert.Equal(t, "svc.local", w.Body.String())
	})
}
