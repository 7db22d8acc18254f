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

package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"crest.dev/app"
	"crest.dev/config"
	apperrors "crest.dev/errors"
	"crest.dev/router"
	"crest.dev/router/middleware/trailingslash"
	"crest.dev/tracing"
)

func testSettings() *config.Settings {
	s := config.DefaultSettings()
	s.Server.Banner = false
	s.Server.ShutdownTimeout = 2 * time.Second
	return s
}

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := l.Addr().String()
	Expect(l.Close()).To(Succeed())
	return addr
}

func newApp(s *config.Settings, opts ...app.Option) *app.App {
	return app.MustNew(append([]app.Option{
		app.WithSettings(s),
		app.WithLogOutput(GinkgoWriter),
	}, opts...)...)
}

func serve(a *app.App, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

var _ = Describe("App", func() {
	Describe("construction", func() {
		It("installs the default middleware stack in order", func() {
			a := newApp(testSettings())
			Expect(a.Router().Middleware()).To(Equal([]string{
				"recovery", "requestid", "accesslog", "security", "bodylimit", "compression",
			}))
			Expect(a.Metrics()).To(BeNil())
			Expect(a.Tracing()).To(BeNil())
		})

		It("honors middleware toggles", func() {
			s := testSettings()
			s.Middleware.AccessLog.Enabled = false
			s.Middleware.Security.Preset = "off"
			s.Middleware.Compression.Enabled = false
			s.Middleware.CORS.Enabled = true
			s.Middleware.CORS.AllowedOrigins = []string{"https://example.com"}
			s.Middleware.RateLimit.Enabled = true
			s.Middleware.Timeout.Duration = time.Second

			a := newApp(s, app.WithTrailingSlash(trailingslash.PolicyMatch))
			Expect(a.Router().Middleware()).To(Equal([]string{
				"recovery", "requestid", "trailingslash", "cors", "ratelimit", "bodylimit", "timeout",
			}))
		})

		It("rejects an invalid logging handler", func() {
			s := testSettings()
			s.Logging.Handler = "xml"
			_, err := app.New(app.WithSettings(s))
			Expect(err).To(MatchError(ContainSubstring("app: logging")))
		})

		It("logs through the configured handler", func() {
			s := testSettings()
			s.Logging.Handler = "json"
			var buf bytes.Buffer
			a := app.MustNew(app.WithSettings(s), app.WithLogOutput(&buf))
			a.Logger().Info("hello", "password", "hunter2")

			Expect(buf.String()).To(ContainSubstring(`"msg":"hello"`))
			Expect(buf.String()).To(ContainSubstring(`"service":"crest"`))
			Expect(buf.String()).NotTo(ContainSubstring("hunter2"))
		})
	})

	Describe("request handling", func() {
		It("serves typed routes with a request id", func() {
			a := newApp(testSettings())
			a.Router().GET("/orders/<int>", router.Handle1(func(_ *router.Request, res *router.Response, id int64) error {
				res.Text(http.StatusOK, fmt.Sprintf("order %d", id))
				return nil
			}))

			rec := serve(a, http.MethodGet, "/orders/7")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("order 7"))
			Expect(rec.Header().Get("X-Request-ID")).NotTo(BeEmpty())
			Expect(rec.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
		})

		It("resolves client addresses through trusted proxies", func() {
			s := testSettings()
			s.Server.TrustedProxies = []string{"192.0.2.0/24"}
			a := newApp(s)
			a.Router().GET("/ip", router.Handle0(func(req *router.Request, res *router.Response) error {
				res.Text(http.StatusOK, req.ClientIP())
				return nil
			}))

			req := httptest.NewRequest(http.MethodGet, "/ip", nil)
			req.Header.Set("X-Forwarded-For", "198.51.100.23")
			rec := httptest.NewRecorder()
			a.Router().ServeHTTP(rec, req)
			Expect(rec.Body.String()).To(Equal("198.51.100.23"))
		})

		It("rejects malformed trusted proxies", func() {
			s := testSettings()
			s.Server.TrustedProxies = []string{"10.0.0.0/99"}
			_, err := app.New(app.WithSettings(s), app.WithLogOutput(GinkgoWriter))
			Expect(err).To(MatchError(router.ErrInvalidProxy))
		})

		It("formats handler errors as problem details", func() {
			a := newApp(testSettings())
			a.Router().GET("/conflict", router.Handle0(func(*router.Request, *router.Response) error {
				return apperrors.WithStatus(errors.New("order already paid"), http.StatusConflict)
			}))

			rec := serve(a, http.MethodGet, "/conflict")
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("application/problem+json"))

			var body map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("detail", "order already paid"))
			Expect(body).To(HaveKeyWithValue("instance", "/conflict"))
			Expect(body).To(HaveKey("request_id"))
		})

		It("uses the simple format when configured", func() {
			s := testSettings()
			s.Errors.Format = "simple"
			a := newApp(s)
			a.Router().GET("/fail", router.Handle0(func(*router.Request, *router.Response) error {
				return errors.New("database is on fire")
			}))

			rec := serve(a, http.MethodGet, "/fail")
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"Internal Server Error"}`))
		})

		It("formats recovered panics", func() {
			a := newApp(testSettings())
			a.Router().GET("/panic", router.Handle0(func(*router.Request, *router.Response) error {
				panic("boom")
			}))

			rec := serve(a, http.MethodGet, "/panic")
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("application/problem+json"))
			Expect(rec.Body.String()).NotTo(ContainSubstring("boom"))
		})

		It("records spans when tracing is enabled", func() {
			s := testSettings()
			s.Tracing.Enabled = true
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
			DeferCleanup(func() { _ = tp.Shutdown(context.Background()) })
			a := newApp(s, app.WithTracingOptions(tracing.WithTracerProvider(tp)))

			a.Router().GET("/orders/<int>", router.Handle1(func(_ *router.Request, res *router.Response, id int64) error {
				res.Text(http.StatusOK, "ok")
				return nil
			}))
			Expect(serve(a, http.MethodGet, "/orders/1").Code).To(Equal(http.StatusOK))

			spans := sr.Ended()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Name()).To(Equal("GET /orders/<int>"))
		})

		It("serves prometheus metrics through the router", func() {
			s := testSettings()
			s.Metrics.Enabled = true
			a := newApp(s)
			DeferCleanup(func() { _ = a.Metrics().Shutdown(context.Background()) })

			a.Router().GET("/ping", router.Handle0(func(_ *router.Request, res *router.Response) error {
				res.Text(http.StatusOK, "pong")
				return nil
			}))
			Expect(serve(a, http.MethodGet, "/ping").Code).To(Equal(http.StatusOK))

			rec := serve(a, http.MethodGet, "/metrics")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("http_requests_total"))
			Expect(rec.Body.String()).To(ContainSubstring(`http_route="/ping"`))
			Expect(rec.Body.String()).NotTo(ContainSubstring(`http_route="/metrics"`))

			rule, ok := a.Router().Lookup("builtin.metrics")
			Expect(ok).To(BeTrue())
			Expect(rule.Template().String()).To(Equal("/metrics"))
		})
	})

	Describe("health endpoints", func() {
		It("answers 200 when every check passes", func() {
			a := newApp(testSettings(), app.WithHealthEndpoints(
				app.WithLivenessCheck("self", func(context.Context) error { return nil }),
			))
			Expect(serve(a, http.MethodGet, "/healthz").Code).To(Equal(http.StatusOK))
			Expect(serve(a, http.MethodGet, "/readyz").Code).To(Equal(http.StatusOK))
		})

		It("answers 503 with the failed checks", func() {
			a := newApp(testSettings(), app.WithHealthEndpoints(
				app.WithHealthPrefix("/_system/"),
				app.WithHealthTimeout(50*time.Millisecond),
				app.WithReadinessCheck("db", func(context.Context) error { return errors.New("connection refused") }),
				app.WithReadinessCheck("cache", func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				}),
			))

			rec := serve(a, http.MethodGet, "/_system/readyz")
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rec.Header().Get("Cache-Control")).To(Equal("no-store"))

			var body map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("code", "unhealthy"))
			Expect(body["errors"]).To(HaveKeyWithValue("db", "connection refused"))
			Expect(body["errors"]).To(HaveKeyWithValue("cache", "context deadline exceeded"))
		})
	})

	Describe("routes table", func() {
		It("lists every rule", func() {
			s := testSettings()
			s.Server.Environment = app.EnvironmentProduction
			a := newApp(s)
			a.Router().GET("/orders/<int>", router.Handle1(func(*router.Request, *router.Response, int64) error { return nil }),
				router.WithName("order"))

			var buf bytes.Buffer
			a.PrintRoutes(&buf)
			out := buf.String()
			Expect(out).To(ContainSubstring("/orders/<int>"))
			Expect(out).To(ContainSubstring("order"))
			Expect(out).To(ContainSubstring("dynamic"))
			Expect(out).NotTo(ContainSubstring("\x1b["))
		})

		It("reports an empty router", func() {
			var buf bytes.Buffer
			newApp(testSettings()).PrintRoutes(&buf)
			Expect(buf.String()).To(Equal("No routes registered\n"))
		})
	})

	Describe("lifecycle", func() {
		It("runs hooks in order around a graceful shutdown", func() {
			s := testSettings()
			s.Server.Addr = freeAddr()
			s.Server.Banner = true
			var banner bytes.Buffer
			a := newApp(s, app.WithBannerOutput(&banner), app.WithHealthEndpoints())

			var mu sync.Mutex
			var order []string
			record := func(step string) {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, step)
			}
			ready := make(chan struct{})
			a.OnStart(func(context.Context) error { record("start"); return nil })
			a.OnReady(func() { close(ready) })
			a.OnShutdown(func(context.Context) { record("shutdown-1") })
			a.OnShutdown(func(context.Context) { record("shutdown-2") })
			a.OnStop(func() { record("stop") })

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- a.Start(ctx) }()

			Eventually(ready).Should(BeClosed())
			Eventually(func() (int, error) {
				resp, err := http.Get("http://" + s.Server.Addr + "/healthz")
				if err != nil {
					return 0, err
				}
				defer resp.Body.Close()
				return resp.StatusCode, nil
			}).Should(Equal(http.StatusOK))

			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			Expect(order).To(Equal([]string{"start", "shutdown-2", "shutdown-1", "stop"}))
			Expect(banner.String()).To(ContainSubstring("Observability"))
			Expect(banner.String()).To(ContainSubstring(s.Server.Addr))

			Expect(a.Start(context.Background())).To(MatchError(app.ErrAlreadyStarted))
			Expect(func() { a.OnStart(nil) }).To(PanicWith(ContainSubstring("after Start")))
		})

		It("aborts startup when an OnStart hook fails", func() {
			s := testSettings()
			s.Server.Addr = freeAddr()
			a := newApp(s)
			a.OnStart(func(context.Context) error { return errors.New("migrations failed") })

			err := a.Start(context.Background())
			Expect(err).To(MatchError(ContainSubstring("startup failed")))
			Expect(err).To(MatchError(ContainSubstring("migrations failed")))
		})

		It("shuts down immediately when the context is already done", func() {
			s := testSettings()
			s.Server.Addr = freeAddr()
			a := newApp(s)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(a.Start(ctx)).To(Succeed())
		})

		It("reports listen failures", func() {
			l, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()

			s := testSettings()
			s.Server.Addr = l.Addr().String()
			err = newApp(s).Start(context.Background())
			Expect(err).To(MatchError(ContainSubstring("server failed")))
		})

		It("joins reload hook errors", func() {
			a := newApp(testSettings())
			calls := 0
			a.OnReload(func(context.Context) error { calls++; return nil })
			a.OnReload(func(context.Context) error { calls++; return errors.New("bad file") })

			err := a.Reload(context.Background())
			Expect(calls).To(Equal(2))
			Expect(err).To(MatchError(ContainSubstring("OnReload hook 1")))
			Expect(strings.Count(err.Error(), "bad file")).To(Equal(1))
		})
	})
})
