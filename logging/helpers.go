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

package logging

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"crest.dev/router"
)

var logAttrPool = sync.Pool{
	New: func() any {
		s := make([]any, 0, 16)
		return &s
	},
}

func withPooledAttrs(fn func(attrs []any) []any) {
	p := logAttrPool.Get().(*[]any)
	*p = fn((*p)[:0])
	clear(*p)
	*p = (*p)[:0]
	logAttrPool.Put(p)
}

// LogRequest logs a routed request at info level with method, path, route,
// client address and user agent, followed by extra.
//
//	logger.LogRequest(req, "status", res.Status(), "bytes", res.Size())
func (l *Logger) LogRequest(req *router.Request, extra ...any) {
	withPooledAttrs(func(attrs []any) []any {
		attrs = append(attrs,
			"method", req.RawMethod,
			"path", req.Path,
			"remote", req.ClientIP(),
			"user_agent", req.Header.Get("User-Agent"),
		)
		if p := req.RoutePattern(); p != "" {
			attrs = append(attrs, "route", p)
		}
		if len(req.Query) > 0 {
			attrs = append(attrs, "query", req.Query.Encode())
		}
		attrs = append(attrs, extra...)
		l.Logger().InfoContext(req.Context(), "http request", attrs...)
		return attrs
	})
}

// LogError logs err at error level under the "error" key.
func (l *Logger) LogError(err error, msg string, extra ...any) {
	withPooledAttrs(func(attrs []any) []any {
		attrs = append(attrs, "error", err.Error())
		attrs = append(attrs, extra...)
		l.Error(msg, attrs...)
		return attrs
	})
}

// LogDuration logs the time elapsed since start as duration_ms and a
// human readable duration.
func (l *Logger) LogDuration(msg string, start time.Time, extra ...any) {
	d := time.Since(start)
	withPooledAttrs(func(attrs []any) []any {
		attrs = append(attrs, "duration_ms", d.Milliseconds(), "duration", d.String())
		attrs = append(attrs, extra...)
		l.Info(msg, attrs...)
		return attrs
	})
}

// ErrorWithStack logs err with the caller's stack when includeStack is set.
func (l *Logger) ErrorWithStack(msg string, err error, includeStack bool, extra ...any) {
	withPooledAttrs(func(attrs []any) []any {
		attrs = append(attrs, "error", err.Error())
		if includeStack {
			attrs = append(attrs, "stack", captureStack(5))
		}
		attrs = append(attrs, extra...)
		l.Error(msg, attrs...)
		return attrs
	})
}

func captureStack(skip int) string {
	var b strings.Builder
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}
