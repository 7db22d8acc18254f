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

package lambda

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crest.dev/router"
)

func event(method, path, query string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		Version:        "2.0",
		RawPath:        path,
		RawQueryString: query,
		Headers:        map[string]string{"host": "api.example.com"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "api.example.com",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "203.0.113.7",
			},
		},
	}
}

func testRouter(t *testing.T) *router.Router {
	t.Helper()
	r := router.MustNew()
	r.GET("/users/<int>", router.Handle1(func(req *router.Request, res *router.Response, id int64) error {
		return res.JSON(http.StatusOK, map[string]any{
			"id":     id,
			"q":      req.Query.Get("q"),
			"ip":     req.ClientIP(),
			"host":   req.Host,
			"cookie": req.Header.Get("Cookie"),
		})
	}))
	r.POST("/echo", router.Handle0(func(req *router.Request, res *router.Response) error {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		res.Header().Set("Content-Type", "application/octet-stream")
		res.Header().Add("Set-Cookie", "a=1")
		res.Header().Add("Set-Cookie", "b=2")
		res.Header().Add("X-Multi", "x")
		res.Header().Add("X-Multi", "y")
		_, err = res.Write(data)
		return err
	}))
	r.GET("/stage", router.Handle0(func(req *router.Request, res *router.Response) error {
		ev, ok := EventFromContext(req.Context())
		if !ok {
			res.Text(http.StatusInternalServerError, "no event")
			return nil
		}
		res.Text(http.StatusOK, ev.RequestContext.Stage)
		return nil
	}))
	_, err := r.WebSocket("/ws", func(*websocket.Conn, *router.Request) error { return nil })
	require.NoError(t, err)
	return r
}

func TestHandler_Dispatch(t *testing.T) {
	t.Parallel()

	h := Handler(testRouter(t))
	ev := event(http.MethodGet, "/users/42", "q=go")
	ev.Cookies = []string{"session=abc", "theme=dark"}

	resp, err := h(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, "application/json; charset=utf-8", resp.Headers["Content-Type"])
	assert.JSONEq(t, `{"id":42,"q":"go","ip":"203.0.113.7","host":"api.example.com","cookie":"session=abc; theme=dark"}`, resp.Body)
}

func TestHandler_BinaryBody(t *testing.T) {
	t.Parallel()

	h := Handler(testRouter(t))
	payload := []byte{0x00, 0xff, 0x10, 0x80}
	ev := event(http.MethodPost, "/echo", "")
	ev.Body = base64.StdEncoding.EncodeToString(payload)
	ev.IsBase64Encoded = true

	resp, err := h(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.IsBase64Encoded)
	got, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []string{"a=1", "b=2"}, resp.Cookies)
	assert.NotContains(t, resp.Headers, "Set-Cookie")
	assert.Equal(t, "x, y", resp.Headers["X-Multi"])
}

func TestHandler_InvalidBase64(t *testing.T) {
	t.Parallel()

	h := Handler(testRouter(t))
	ev := event(http.MethodPost, "/echo", "")
	ev.Body = "%%%"
	ev.IsBase64Encoded = true

	resp, err := h(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Outcomes(t *testing.T) {
	t.Parallel()

	h := Handler(testRouter(t))

	tests := []struct {
		name   string
		method string
		path   string
		status int
		allow  string
		body   bool
	}{
		{name: "not found", method: http.MethodGet, path: "/missing", status: http.StatusNotFound},
		{name: "method not allowed", method: http.MethodDelete, path: "/echo", status: http.StatusMethodNotAllowed, allow: "POST"},
		{name: "head has no body", method: http.MethodHead, path: "/users/1", status: http.StatusOK},
		{name: "websocket unsupported", method: http.MethodGet, path: "/ws", status: http.StatusNotImplemented, body: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := h(context.Background(), event(tt.method, tt.path, ""))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.allow != "" {
				assert.Contains(t, resp.Headers["Allow"], tt.allow)
			}
			if tt.body {
				assert.NotEmpty(t, resp.Body)
			} else if tt.method == http.MethodHead {
				assert.Empty(t, resp.Body)
			}
		})
	}
}

func TestEventFromContext(t *testing.T) {
	t.Parallel()

	h := Handler(testRouter(t))
	ev := event(http.MethodGet, "/stage", "")
	ev.RequestContext.Stage = "prod"

	resp, err := h(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "prod", resp.Body)

	_, ok := EventFromContext(context.Background())
	assert.False(t, ok)
}

func TestNewRequest_Fallbacks(t *testing.T) {
	t.Parallel()

	ev := events.APIGatewayV2HTTPRequest{
		RequestContext: events.APIGatewayV2HTTPRequestContext{DomainName: "d.example.com"},
	}
	req, err := NewRequest(context.Background(), &ev)
	require.NoError(t, err)
	assert.Equal(t, "/", req.Path)
	assert.Equal(t, http.MethodGet, req.RawMethod)
	assert.Equal(t, "d.example.com", req.Host)
}

func TestIsText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header http.Header
		body   []byte
		want   bool
	}{
		{name: "plain", header: http.Header{"Content-Type": {"text/plain"}}, want: true},
		{name: "problem json", header: http.Header{"Content-Type": {"application/problem+json"}}, want: true},
		{name: "json", header: http.Header{"Content-Type": {"application/json; charset=utf-8"}}, want: true},
		{name: "png", header: http.Header{"Content-Type": {"image/png"}}, want: false},
		{name: "compressed", header: http.Header{"Content-Type": {"text/plain"}, "Content-Encoding": {"gzip"}}, want: false},
		{name: "untyped utf8", header: http.Header{}, body: []byte("hi"), want: true},
		{name: "untyped binary", header: http.Header{}, body: []byte{0xff, 0xfe}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isText(tt.header, tt.body))
		})
	}
}
