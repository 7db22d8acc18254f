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

// Package compression compresses response bodies with Brotli or gzip.
package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "compression"

// negotiation is the per-request slice: the encoding picked from
// Accept-Encoding during the before phase.
type negotiation struct {
	encoding string
}

// New returns a middleware that compresses response bodies.
//
// The encoding is negotiated from Accept-Encoding with q-values, preferring
// Brotli over gzip at equal quality. Because responses are buffered, the
// decision is made once in the after phase with the full body at hand:
// bodies below the minimum size, HEAD responses, 204/206/304 responses,
// streaming and already encoded content are sent as is.
//
// Example:
//
//	r.Use(compression.New(
//	    compression.WithGzipLevel(gzip.BestSpeed),
//	    compression.WithMinSize(1024),
//	    compression.WithExcludePaths("/metrics"),
//	))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return router.NewMiddleware(Name, router.Hooks[negotiation]{
		Before: func(req *router.Request, _ *router.Response, n *negotiation) router.Flow {
			if cfg.excludePaths[req.Path] {
				return router.Continue
			}
			for ext := range cfg.excludeExtensions {
				if strings.HasSuffix(req.Path, ext) {
					return router.Continue
				}
			}
			n.encoding = chooseEncoding(req.Header.Get("Accept-Encoding"), cfg)
			return router.Continue
		},
		After: func(req *router.Request, res *router.Response, n *negotiation) {
			if n.encoding == "" || res.SkipBody() || res.Upgrading() {
				return
			}
			if req.Err() != nil && !res.Ended() {
				// The error handler replaces the body.
				return
			}
			h := res.Header()
			if h.Get("Content-Encoding") != "" || shouldSkipStatus(res.Status()) ||
				shouldSkipContentType(h.Get("Content-Type"), cfg.excludeContentTypes) {
				return
			}
			h.Add("Vary", "Accept-Encoding")
			body := res.Body()
			if len(body) == 0 || len(body) < cfg.minSize {
				return
			}

			compressed, err := cfg.compress(n.encoding, body)
			if err != nil {
				cfg.logger.Error("compression failed", "encoding", n.encoding, "error", err)
				return
			}
			res.SetBody(compressed)
			h.Set("Content-Encoding", n.encoding)
			h.Del("Content-Length")
		},
	})
}

// compress encodes body with a pooled writer.
func (cfg *config) compress(encoding string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(body) / 2)

	switch encoding {
	case "br":
		pool := getBrotliWriterPool(cfg.brotliLevel)
		w := pool.Get().(*brotli.Writer)
		defer pool.Put(w)
		w.Reset(&buf)
		if err := writeAndClose(w, body); err != nil {
			return nil, err
		}
		w.Reset(nil)
	case "gzip":
		pool := getGzipWriterPool(cfg.gzipLevel)
		w := pool.Get().(*gzip.Writer)
		defer pool.Put(w)
		w.Reset(&buf)
		if err := writeAndClose(w, body); err != nil {
			return nil, err
		}
		w.Reset(nil)
	default:
		return body, nil
	}
	return buf.Bytes(), nil
}

func writeAndClose(w io.WriteCloser, p []byte) error {
	if _, err := w.Write(p); err != nil {
		return err
	}
	return w.Close()
}

// shouldSkipStatus reports whether responses with code are sent unencoded.
func shouldSkipStatus(code int) bool {
	return code == http.StatusNoContent ||
		code == http.StatusNotModified ||
		code == http.StatusPartialContent
}

// shouldSkipContentType reports whether ct is streaming, opaque or excluded.
func shouldSkipContentType(ct string, excludes map[string]bool) bool {
	if ct == "" {
		return false
	}

	ctLower := strings.ToLower(ct)
	if strings.Contains(ctLower, "text/event-stream") ||
		strings.Contains(ctLower, "application/grpc") ||
		strings.Contains(ctLower, "application/octet-stream") {
		return true
	}

	for excluded := range excludes {
		if strings.Contains(ctLower, strings.ToLower(excluded)) {
			return true
		}
	}
	return false
}

// Writer pools, one per compression level.
var (
	gzipWriterPools   = make(map[int]*sync.Pool)
	brotliWriterPools = make(map[int]*sync.Pool)
	poolsMutex        sync.RWMutex
)

func getGzipWriterPool(level int) *sync.Pool {
	poolsMutex.RLock()
	pool, exists := gzipWriterPools[level]
	poolsMutex.RUnlock()
	if exists {
		return pool
	}

	poolsMutex.Lock()
	defer poolsMutex.Unlock()
	if pool, exists := gzipWriterPools[level]; exists {
		return pool
	}
	pool = &sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, level)
			return w
		},
	}
	gzipWriterPools[level] = pool
	return pool
}

func getBrotliWriterPool(level int) *sync.Pool {
	poolsMutex.RLock()
	pool, exists := brotliWriterPools[level]
	poolsMutex.RUnlock()
	if exists {
		return pool
	}

	poolsMutex.Lock()
	defer poolsMutex.Unlock()
	if pool, exists := brotliWriterPools[level]; exists {
		return pool
	}
	pool = &sync.Pool{
		New: func() any {
			return brotli.NewWriterLevel(io.Discard, level)
		},
	}
	brotliWriterPools[level] = pool
	return pool
}

// chooseEncoding picks "br", "gzip" or "" from an Accept-Encoding header.
// Brotli wins ties.
func chooseEncoding(acceptEncoding string, cfg *config) string {
	if acceptEncoding == "" {
		return ""
	}

	ae := strings.ToLower(acceptEncoding)
	brQ := parseQValue(ae, "br")
	gzipQ := parseQValue(ae, "gzip")
	if wildcard := parseQValue(ae, "*"); wildcard > 0 {
		if brQ < 0 {
			brQ = wildcard
		}
		if gzipQ < 0 {
			gzipQ = wildcard
		}
	}

	if cfg.enableBrotli && brQ > 0 && (brQ >= gzipQ || !cfg.enableGzip) {
		return "br"
	}
	if cfg.enableGzip && gzipQ > 0 {
		return "gzip"
	}
	return ""
}

// parseQValue returns the quality of encoding in accept: -1 if absent,
// 1 if present without q.
func parseQValue(accept, encoding string) float64 {
	for part := range strings.SplitSeq(accept, ",") {
		name, params, _ := strings.Cut(part, ";")
		if strings.TrimSpace(name) != encoding {
			continue
		}
		for param := range strings.SplitSeq(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return 1
			}
			return q
		}
		return 1
	}
	return -1
}
