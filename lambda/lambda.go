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


package lambda

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	"crest.dev/router"
)

// HandlerFunc is the signature registered with the Lambda runtime.
type HandlerFunc func(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

type eventKey struct{}

// EventFromContext returns the API Gateway event being served, if any.
// Handlers use it to reach the authorizer, stage variables or request
// context that have no HTTP equivalent.
func EventFromContext(ctx context.Context) (*events.APIGatewayV2HTTPRequest, bool) {
	ev, ok := ctx.Value(eventKey{}).(*events.APIGatewayV2HTTPRequest)
	return ev, ok
}

// Handler returns a Lambda handler that dispatches events through r.
func Handler(r *router.Router) HandlerFunc {
	return func(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		req, err := NewRequest(ctx, &ev)
		if err != nil {
			return textResponse(http.StatusBadRequest, "invalid request body"), nil
		}
		res := router.NewResponse()
		r.Dispatch(req, res)
		if res.Upgrading() {
			return textResponse(http.StatusNotImplemented, "websocket upgrade is not supported"), nil
		}
		return NewResponse(res), nil
	}
}

// Start hands r to the Lambda runtime. It blocks for the life of the
// process.
func Start(r *router.Router, opts ...awslambda.Option) {
	awslambda.StartWithOptions(Handler(r), opts...)
}

// NewRequest converts ev into a router request bound to ctx.
func NewRequest(ctx context.Context, ev *events.APIGatewayV2HTTPRequest) (*router.Request, error) {
	path := ev.RawPath
	if path == "" {
		path = ev.RequestContext.HTTP.Path
	}
	if path == "" {
		path = "/"
	}
	target := path
	if ev.RawQueryString != "" {
		target += "?" + ev.RawQueryString
	}

	method := ev.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}
	req := router.NewRequest(method, target)

	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	if len(ev.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(ev.Cookies, "; "))
	}
	req.Host = req.Header.Get("Host")
	if req.Host == "" {
		req.Host = ev.RequestContext.DomainName
	}
	req.RemoteAddr = ev.RequestContext.HTTP.SourceIP

	if ev.Body != "" {
		body := []byte(ev.Body)
		if ev.IsBase64Encoded {
			var err error
			if body, err = base64.StdEncoding.DecodeString(ev.Body); err != nil {
				return nil, err
			}
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	req.WithContext(context.WithValue(ctx, eventKey{}, ev))
	return req, nil
}

// NewResponse converts a dispatched router response. Set-Cookie headers
// move to the cookies list and repeated headers are comma-joined.
func NewResponse(res *router.Response) events.APIGatewayV2HTTPResponse {
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: res.Status(),
		Headers:    make(map[string]string, len(res.Header())),
	}
	for k, vs := range res.Header() {
		if http.CanonicalHeaderKey(k) == "Set-Cookie" {
			out.Cookies = append(out.Cookies, vs...)
			continue
		}
		out.Headers[k] = strings.Join(vs, ", ")
	}

	code := out.StatusCode
	if res.SkipBody() || code < 200 || code == http.StatusNoContent || code == http.StatusNotModified {
		return out
	}
	body := res.Body()
	if len(body) == 0 {
		return out
	}
	if isText(res.Header(), body) {
		out.Body = string(body)
	} else {
		out.Body = base64.StdEncoding.EncodeToString(body)
		out.IsBase64Encoded = true
	}
	return out
}

func textResponse(code int, msg string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       msg,
	}
}

// isText reports whether body can travel as a plain string. Encoded bodies
// never can; untyped ones can when they are valid UTF-8.
func isText(h http.Header, body []byte) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := h.Get("Content-Type")
	if ct == "" {
		return utf8.Valid(body)
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case strings.HasSuffix(mt, "+json"), strings.HasSuffix(mt, "+xml"):
		return true
	}
	switch mt {
	case "application/json", "application/xml", "application/javascript",
		"application/x-www-form-urlencoded", "image/svg+xml":
		return true
	}
	return false
}
