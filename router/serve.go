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
	"errors"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ErrorHandler turns a failed request into a response. err is whatever
// [Router.Handle] returned: a handler error, a [*PanicError] or a context
// error.
type ErrorHandler func(req *Request, res *Response, err error)

// defaultErrorHandler logs err and answers 500 with a generic body.
// Canceled requests are logged at debug level and answered 503 without a body.
func (r *Router) defaultErrorHandler(req *Request, res *Response, err error) {
	if errors.Is(err, context.Canceled) {
		r.logger.Debug("request canceled", "method", req.RawMethod, "path", req.Path)
		res.reset(http.StatusServiceUnavailable)
		return
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		r.logger.Error("handler panic",
			"method", req.RawMethod,
			"path", req.Path,
			"panic", pe.Value,
			"stack", string(pe.Stack),
		)
	} else {
		r.logger.Error("request failed",
			"method", req.RawMethod,
			"path", req.Path,
			"error", err,
		)
	}
	res.Header().Del("Content-Encoding")
	res.Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// Dispatch runs [Router.Handle] and applies the error handler. Transports
// other than net/http use it to get a complete response.
func (r *Router) Dispatch(req *Request, res *Response) {
	err := r.Handle(req, res)
	if err == nil {
		return
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		r.emit(DiagHandlerPanic, "handler panicked", map[string]any{
			"method": req.RawMethod,
			"path":   req.Path,
			"panic":  pe.Value,
		})
	}
	if !res.Ended() {
		r.errorHandler(req, res, err)
	}
}

// ServeHTTP implements [http.Handler].
//
// The request is routed and handled into a buffered [Response], which is
// then written to w. WebSocket rules upgrade the connection instead.
func (r *Router) ServeHTTP(w http.ResponseWriter, hr *http.Request) {
	ctx := hr.Context()
	var obsState any

	if r.observability != nil {
		var enrichedCtx context.Context
		enrichedCtx, obsState = r.observability.OnRequestStart(ctx, hr)
		if enrichedCtx != ctx {
			ctx = enrichedCtx
			hr = hr.WithContext(ctx)
		}
		if obsState != nil {
			w = r.observability.WrapResponseWriter(w, obsState)
		}
	}

	req := FromHTTP(hr)
	res := NewResponse()
	r.Dispatch(req, res)

	if res.upgrade != nil {
		r.upgrade(w, req, res)
	} else if _, err := res.Flush(w); err != nil {
		r.logger.Debug("response write failed", "path", req.Path, "error", err)
	}

	if obsState != nil {
		r.observability.OnRequestEnd(req.Context(), obsState, w, routePattern(req))
	}
}

// Serve starts the HTTP server on the specified address.
// Automatically enables h2c if configured via WithH2C().
//
// This method follows the stdlib pattern: it blocks until the server exits.
// For graceful shutdown, use the Shutdown method from another goroutine.
//
// Example:
//
//	go func() {
//	    if err := r.Serve(":8080"); err != nil && err != http.ErrServerClosed {
//	        log.Fatal(err)
//	    }
//	}()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	r.Shutdown(ctx)
func (r *Router) Serve(addr string) error {
	return r.serve(addr, func(srv *http.Server) error { return srv.ListenAndServe() })
}

// ServeTLS starts the HTTPS server. HTTP/2 is negotiated via ALPN.
func (r *Router) ServeTLS(addr, certFile, keyFile string) error {
	return r.serve(addr, func(srv *http.Server) error { return srv.ListenAndServeTLS(certFile, keyFile) })
}

func (r *Router) serve(addr string, listen func(*http.Server) error) error {
	h := http.Handler(r)
	if r.enableH2C {
		h = h2c.NewHandler(h, &http2.Server{})
		r.emit(DiagH2CEnabled, "H2C enabled; use only in dev or behind a trusted LB", nil)
	}

	timeouts := r.serverTimeouts
	if timeouts == nil {
		timeouts = defaultServerTimeouts()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: timeouts.readHeader,
		ReadTimeout:       timeouts.read,
		WriteTimeout:      timeouts.write,
		IdleTimeout:       timeouts.idle,
	}

	r.serverMu.Lock()
	r.server = srv
	r.serverMu.Unlock()

	return listen(srv)
}

// Shutdown gracefully shuts down the server without interrupting active connections.
// Shutdown returns nil if no server is running, or the error from http.Server.Shutdown.
func (r *Router) Shutdown(ctx context.Context) error {
	r.serverMu.Lock()
	srv := r.server
	r.server = nil
	r.serverMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
