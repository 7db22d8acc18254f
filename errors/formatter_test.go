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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crest.dev/router"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "plain", err: errors.New("x"), want: http.StatusInternalServerError},
		{name: "typed", err: &testErrorWithStatus{message: "gone", status: http.StatusGone}, want: http.StatusGone},
		{name: "wrapped typed", err: fmt.Errorf("load: %w", WithStatus(errors.New("x"), http.StatusConflict)), want: http.StatusConflict},
		{name: "canceled", err: context.Canceled, want: http.StatusServiceUnavailable},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "panic", err: &router.PanicError{Value: "boom"}, want: http.StatusInternalServerError},
		{name: "validation", err: Validation(FieldError{Path: "email", Message: "required"}), want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestWithStatus(t *testing.T) {
	t.Parallel()

	base := errors.New("duplicate sku")
	err := WithStatus(base, http.StatusConflict)
	assert.Equal(t, "duplicate sku", err.Error())
	require.ErrorIs(t, err, base)

	var typed ErrorType
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusConflict, typed.HTTPStatus())

	assert.Equal(t, "Not Found", WithStatus(nil, http.StatusNotFound).Error())
}

func TestHandler_WritesFormattedResponse(t *testing.T) {
	t.Parallel()

	r := router.MustNew(router.WithErrorHandler(Handler(NewSimple(), nil)))
	r.GET("/orders/<int>", router.Handle1(func(_ *router.Request, _ *router.Response, id int64) error {
		return WithStatus(fmt.Errorf("order %d not found", id), http.StatusNotFound)
	}))

	res := router.NewResponse()
	r.Dispatch(router.NewRequest("GET", "/orders/9"), res)
	assert.Equal(t, http.StatusNotFound, res.Status())
	assert.Equal(t, "application/json; charset=utf-8", res.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"order 9 not found"}`, string(res.Body()))
}

func TestHandler_PanicIsLoggedAndHidden(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	f := NewRFC9457("https://errors.example.com")
	f.DisableErrorID = true
	r := router.MustNew(router.WithErrorHandler(Handler(f, logger)))
	r.GET("/boom", router.Handle0(func(*router.Request, *router.Response) error {
		panic("secret state")
	}))

	res := router.NewResponse()
	r.Dispatch(router.NewRequest("GET", "/boom"), res)
	assert.Equal(t, http.StatusInternalServerError, res.Status())
	assert.NotContains(t, string(res.Body()), "secret state")

	var p map[string]any
	require.NoError(t, json.Unmarshal(res.Body(), &p))
	assert.Equal(t, "about:blank", p["type"])
	assert.Equal(t, "/boom", p["instance"])
	assert.NotContains(t, p, "detail")

	assert.Contains(t, logs.String(), `"msg":"handler panic"`)
	assert.Contains(t, logs.String(), "secret state")
}

func TestHandler_ClientErrorsAreNotLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Handler(NewSimple(), logger)

	req := router.NewRequest("POST", "/orders")
	res := router.NewResponse()
	res.Header().Set("Content-Encoding", "gzip")
	h(req, res, Validation(FieldError{Path: "qty", Message: "must be positive"}))

	assert.Equal(t, http.StatusUnprocessableEntity, res.Status())
	assert.Empty(t, res.Header().Get("Content-Encoding"))
	assert.Zero(t, logs.Len())
}

func TestHandler_ExtraHeaders(t *testing.T) {
	t.Parallel()

	f := formatterFunc(func(*router.Request, error) Response {
		return Response{
			Status:      http.StatusTooManyRequests,
			ContentType: "application/json",
			Body:        map[string]string{"error": "slow down"},
			Headers:     http.Header{"Retry-After": {"30"}},
		}
	})
	res := router.NewResponse()
	Handler(f, nil)(router.NewRequest("GET", "/"), res, errors.New("limited"))

	assert.Equal(t, http.StatusTooManyRequests, res.Status())
	assert.Equal(t, "30", res.Header().Get("Retry-After"))
}

func TestHandler_UnencodableBody(t *testing.T) {
	t.Parallel()

	f := formatterFunc(func(*router.Request, error) Response {
		return Response{Status: http.StatusBadRequest, ContentType: "application/json", Body: make(chan int)}
	})
	res := router.NewResponse()
	Handler(f, nil)(router.NewRequest("GET", "/"), res, errors.New("x"))

	assert.Equal(t, http.StatusInternalServerError, res.Status())
	assert.Equal(t, "Internal Server Error", string(res.Body()))
}

type formatterFunc func(*router.Request, error) Response

func (f formatterFunc) Format(req *router.Request, err error) Response { return f(req, err) }
