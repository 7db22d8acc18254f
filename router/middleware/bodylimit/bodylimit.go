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

// Package bodylimit caps the size of request bodies.
package bodylimit

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "bodylimit"

// ErrBodyLimitExceeded is returned by reads past the configured limit.
var ErrBodyLimitExceeded = errors.New("request body size exceeds limit")

type none struct{}

// New returns a middleware that rejects request bodies larger than the limit
// with 413 Request Entity Too Large.
//
// The Content-Length header is checked first so oversized requests are
// rejected before the handler runs. The body is then wrapped so reads fail
// with [ErrBodyLimitExceeded] once the limit is passed, which also covers
// chunked requests and lying headers. A handler returning that error (wrapped
// or not) gets the same 413 response.
//
// Example:
//
//	r.Use(bodylimit.New(
//	    bodylimit.WithLimit(10 << 20),
//	    bodylimit.WithSkipPaths("/upload"),
//	))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return router.NewMiddleware(Name, router.Hooks[none]{
		Before: func(req *router.Request, res *router.Response, _ *none) router.Flow {
			if cfg.skipPaths[req.Path] {
				return router.Continue
			}

			if cl := req.Header.Get("Content-Length"); cl != "" {
				if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > cfg.limit {
					cfg.errorHandler(req, res, cfg.limit)
					return router.Stop
				}
			}

			if req.Body != nil {
				req.Body = &limitedReader{reader: req.Body, limit: cfg.limit}
			}
			return router.Continue
		},
		After: func(req *router.Request, res *router.Response, _ *none) {
			if res.Ended() || !errors.Is(req.Err(), ErrBodyLimitExceeded) {
				return
			}
			cfg.errorHandler(req, res, cfg.limit)
			res.End()
		},
	})
}

func defaultErrorHandler(_ *router.Request, res *router.Response, limit int64) {
	_ = res.JSON(http.StatusRequestEntityTooLarge, map[string]any{
		"error":    "request entity too large",
		"max_size": formatSize(limit),
	})
}

// formatSize formats a byte size for humans.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fGB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1fKB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// limitedReader fails reads once more than limit bytes are available.
// Reading exactly limit bytes is allowed.
type limitedReader struct {
	reader io.ReadCloser
	limit  int64
	read   int64
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.read >= lr.limit {
		// Probe for one more byte to tell "exactly at limit" from "over".
		var probe [1]byte
		n, err := lr.reader.Read(probe[:])
		if n > 0 {
			return 0, fmt.Errorf("%w: %d bytes", ErrBodyLimitExceeded, lr.limit)
		}
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	if remaining := lr.limit - lr.read; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lr.reader.Read(p)
	lr.read += int64(n)
	return n, err
}

func (lr *limitedReader) Close() error {
	return lr.reader.Close()
}
