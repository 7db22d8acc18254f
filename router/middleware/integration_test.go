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

//go:build integration

package middleware_test

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"crest.dev/router"
	"crest.dev/router/middleware"
	"crest.dev/router/middleware/accesslog"
	"crest.dev/router/middleware/basicauth"
	"crest.dev/router/middleware/bodylimit"
	"crest.dev/router/middleware/compression"
	"crest.dev/router/middleware/cors"
	"crest.dev/router/middleware/ratelimit"
	"crest.dev/router/middleware/recovery"
	"crest.dev/router/middleware/requestid"
	"crest.dev/router/middleware/security"
	"crest.dev/router/middleware/timeout"
)

// testLogHandler captures log records.
type testLogHandler struct {
	mu      sync.Mutex
	records []testLogRecord
}

type testLogRecord struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

func (h *testLogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.records = append(h.records, testLogRecord{level: r.Level, msg: r.Message, attrs: attrs})
	return nil
}

func (h *testLogHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *testLogHandler) WithGroup(string) slog.Handler      { return h }

func (h *testLogHandler) byLevel(level slog.Level) []testLogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []testLogRecord
	for _, r := range h.records {
		if r.level == level {
			out = append(out, r)
		}
	}
	return out
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func serve(r *router.Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var _ = Describe("Middleware Integration", Label("integration"), func() {
	var (
		logs   *testLogHandler
		logger *slog.Logger
		r      *router.Router
		rid    *router.Middleware
	)

	BeforeEach(func() {
		logs = &testLogHandler{}
		logger = slog.New(logs)
		r = router.MustNew(router.WithLogger(middleware.NewTestLogger()))
		rid = requestid.New()
		r.Use(
			rid,
			accesslog.New(accesslog.WithLogger(logger)),
			recovery.New(recovery.WithLogger(nil)),
		)
	})

	Describe("basic stack", func() {
		It("exposes the request id to handlers and logs the request", func() {
			r.GET("/test", router.Handle0(func(req *router.Request, res *router.Response) error {
				id := requestid.Get(req, rid)
				Expect(id).NotTo(BeEmpty())
				return res.JSON(http.StatusOK, map[string]string{"request_id": id})
			}))

			w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			id := w.Header().Get("X-Request-ID")
			Expect(id).NotTo(BeEmpty())
			Expect(w.Body.String()).To(ContainSubstring(id))

			records := logs.byLevel(slog.LevelInfo)
			Expect(records).To(HaveLen(1))
			Expect(records[0].msg).To(Equal("access"))
			Expect(records[0].attrs).To(HaveKeyWithValue("request_id", id))
			Expect(records[0].attrs).To(HaveKeyWithValue("route", "/test"))
		})

		It("recovers panics inside the stack and still logs them", func() {
			r.GET("/panic", router.Handle0(func(*router.Request, *router.Response) error {
				panic("test panic")
			}))

			w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Header().Get("X-Request-ID")).NotTo(BeEmpty())
			records := logs.byLevel(slog.LevelError)
			Expect(records).To(HaveLen(1))
			Expect(records[0].attrs["status"]).To(BeEquivalentTo(http.StatusInternalServerError))
		})

		It("recovers panics from later middleware", func() {
			r.Use(router.NewMiddleware("boom", router.Hooks[struct{}]{
				Before: func(*router.Request, *router.Response, *struct{}) router.Flow {
					panic("middleware panic")
				},
			}))
			r.GET("/test", router.Handle0(func(*router.Request, *router.Response) error {
				Fail("handler must not run")
				return nil
			}))

			w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring("INTERNAL_ERROR"))
		})

		It("logs unmatched requests with bounded route labels", func() {
			r.GET("/known", router.Handle0(func(*router.Request, *router.Response) error { return nil }))

			Expect(serve(r, httptest.NewRequest(http.MethodGet, "/unknown/123", nil)).Code).To(Equal(http.StatusNotFound))
			Expect(serve(r, httptest.NewRequest(http.MethodPost, "/known", nil)).Code).To(Equal(http.StatusMethodNotAllowed))

			warns := logs.byLevel(slog.LevelWarn)
			Expect(warns).To(HaveLen(2))
			Expect(warns[0].attrs).To(HaveKeyWithValue("route", router.PatternNotFound))
			Expect(warns[1].attrs).To(HaveKeyWithValue("route", router.PatternMethodNotAllowed))
		})
	})

	Describe("security stack", func() {
		BeforeEach(func() {
			r.Use(
				security.New(),
				cors.New(
					cors.WithAllowedOrigins("https://example.com"),
					cors.WithAllowedMethods("GET", "POST"),
				),
			)
			Expect(r.Declare(basicauth.New(basicauth.WithUsers(map[string]string{"admin": "secret"})))).To(Succeed())
			r.GET("/admin", router.Handle0(func(req *router.Request, res *router.Response) error {
				res.Text(http.StatusOK, "hello "+basicauth.Username(req))
				return nil
			}), router.WithMiddleware(basicauth.Name))
		})

		It("authenticates and decorates the response", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Origin", "https://example.com")
			req.Header.Set("Authorization", basic("admin", "secret"))

			w := serve(r, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal("hello admin"))
			Expect(w.Header().Get("X-Frame-Options")).To(Equal("DENY"))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://example.com"))
		})

		It("rejects bad credentials but keeps global headers", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", basic("admin", "wrong"))

			w := serve(r, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(w.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
			Expect(logs.byLevel(slog.LevelWarn)).To(HaveLen(1))
		})

		It("answers CORS preflight before authentication", func() {
			req := httptest.NewRequest(http.MethodOptions, "/admin", nil)
			req.Header.Set("Origin", "https://example.com")
			req.Header.Set("Access-Control-Request-Method", "GET")

			w := serve(r, req)

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(w.Header().Get("Access-Control-Allow-Methods")).To(Equal("GET, POST"))
		})
	})

	Describe("full production stack", func() {
		BeforeEach(func() {
			r.Use(
				security.New(),
				ratelimit.New(ratelimit.WithRequestsPerSecond(1), ratelimit.WithBurst(2)),
				bodylimit.New(bodylimit.WithLimit(64)),
				timeout.New(time.Second, timeout.WithoutLogging()),
				compression.New(),
			)
			r.POST("/echo", router.Handle0(func(req *router.Request, res *router.Response) error {
				body, err := io.ReadAll(req.Body)
				if err != nil {
					return err
				}
				res.Text(http.StatusOK, strings.Repeat(string(body), 32))
				return nil
			}))
		})

		It("compresses, limits and rate limits", func() {
			req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello"))
			req.Header.Set("Accept-Encoding", "gzip")
			w := serve(r, req)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Encoding")).To(Equal("gzip"))
			Expect(w.Header().Get("RateLimit-Limit")).To(Equal("2"))

			big := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 100)))
			big.ContentLength = -1
			big.Header.Del("Content-Length")
			w = serve(r, big)
			Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))

			w = serve(r, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("x")))
			Expect(w.Code).To(Equal(http.StatusTooManyRequests))
			Expect(w.Header().Get("Retry-After")).NotTo(BeEmpty())
		})
	})

	Describe("blueprints", func() {
		It("applies blueprint middleware only below the prefix", func() {
			Expect(r.Declare(basicauth.New(basicauth.WithUsers(map[string]string{"admin": "secret"})))).To(Succeed())

			ok := router.Handle0(func(_ *router.Request, res *router.Response) error {
				res.Text(http.StatusOK, "ok")
				return nil
			})
			public := router.NewBlueprint("public").GET("/info", ok)
			admin := router.NewBlueprint("admin").Use(basicauth.Name).GET("/stats", ok)
			Expect(r.Mount(public, admin)).To(Succeed())

			Expect(serve(r, httptest.NewRequest(http.MethodGet, "/public/info", nil)).Code).To(Equal(http.StatusOK))
			Expect(serve(r, httptest.NewRequest(http.MethodGet, "/admin/stats", nil)).Code).To(Equal(http.StatusUnauthorized))

			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			req.Header.Set("Authorization", basic("admin", "secret"))
			Expect(serve(r, req).Code).To(Equal(http.StatusOK))
		})
	})
})
