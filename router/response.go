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
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// Response is the buffered response the router fills in for a transport.
//
// Handlers and middleware write status, headers and body; the transport
// writes the result once the pipeline has unwound. Buffering lets after
// phases inspect and rewrite the body (compression, access logs).
type Response struct {
	code     int
	header   http.Header
	body     bytes.Buffer
	ended    bool
	skipBody bool
	upgrade  WebSocketHandler
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{header: make(http.Header)}
}

// Status returns the status code; 200 if none was set.
func (r *Response) Status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}

// SetStatus sets the status code.
func (r *Response) SetStatus(code int) { r.code = code }

// WriteHeader sets the status code, making Response an http.ResponseWriter
// for handlers adapted with [WrapHTTP].
func (r *Response) WriteHeader(code int) { r.code = code }

// Header returns the response header map.
func (r *Response) Header() http.Header { return r.header }

// Write appends p to the body.
func (r *Response) Write(p []byte) (int, error) { return r.body.Write(p) }

// WriteString appends s to the body.
func (r *Response) WriteString(s string) (int, error) { return r.body.WriteString(s) }

// Body returns the buffered body. The slice is only valid until the next write.
func (r *Response) Body() []byte { return r.body.Bytes() }

// SetBody replaces the body.
func (r *Response) SetBody(p []byte) {
	r.body.Reset()
	r.body.Write(p)
}

// Size returns the number of body bytes the transport will send.
func (r *Response) Size() int64 {
	if r.skipBody {
		return 0
	}
	return int64(r.body.Len())
}

// End marks the response as terminal. Middleware that short-circuit call it
// implicitly by returning [Stop].
func (r *Response) End() { r.ended = true }

// Ended reports whether the response was marked terminal.
func (r *Response) Ended() bool { return r.ended }

// SkipBody reports whether the transport must omit the body (HEAD).
func (r *Response) SkipBody() bool { return r.skipBody }

// Upgrade marks the response as a protocol switch handled by h.
func (r *Response) Upgrade(h WebSocketHandler) {
	r.upgrade = h
	r.ended = true
}

// Upgrading reports whether the response was marked as an upgrade.
func (r *Response) Upgrading() bool { return r.upgrade != nil }

// Text writes a plain text body with code.
func (r *Response) Text(code int, s string) {
	r.code = code
	r.header.Set("Content-Type", "text/plain; charset=utf-8")
	r.body.Reset()
	r.body.WriteString(s)
}

// JSON writes v as a JSON body with code.
func (r *Response) JSON(code int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.code = code
	r.header.Set("Content-Type", "application/json; charset=utf-8")
	r.SetBody(data)
	return nil
}

// Redirect sets a redirect to location with code.
func (r *Response) Redirect(code int, location string) {
	r.code = code
	r.header.Set("Location", location)
	r.body.Reset()
}

// reset clears the response for routing outcomes that own the whole reply.
func (r *Response) reset(code int) {
	r.code = code
	r.body.Reset()
}

// Flush writes the response to w. Content-Length is set from the buffered
// body unless a header already fixes it.
func (r *Response) Flush(w http.ResponseWriter) (int64, error) {
	h := w.Header()
	for k, v := range r.header {
		h[k] = v
	}
	code := r.Status()
	bodyAllowed := code >= 200 && code != http.StatusNoContent && code != http.StatusNotModified
	if bodyAllowed && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(r.body.Len()))
	}
	w.WriteHeader(code)
	if r.skipBody || !bodyAllowed {
		return 0, nil
	}
	n, err := w.Write(r.body.Bytes())
	return int64(n), err
}
