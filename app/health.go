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

package app

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"crest.dev/router"
)

// CheckFunc reports whether a dependency is healthy. It must honor ctx.
type CheckFunc func(ctx context.Context) error

// HealthOption configures the health endpoints.
type HealthOption func(*healthSettings)

type healthSettings struct {
	prefix    string
	liveness  map[string]CheckFunc
	readiness map[string]CheckFunc
	timeout   time.Duration
}

func (s *healthSettings) livenessPath() string  { return s.prefix + "/healthz" }
func (s *healthSettings) readinessPath() string { return s.prefix + "/readyz" }

// WithHealthEndpoints registers GET /healthz (liveness) and GET /readyz
// (readiness). Both answer 200 when every check passes and 503 otherwise.
// They are excluded from metrics, tracing and access logs.
//
//	a := app.MustNew(app.WithHealthEndpoints(
//	    app.WithReadinessCheck("db", db.PingContext),
//	))
func WithHealthEndpoints(opts ...HealthOption) Option {
	return func(o *options) {
		s := &healthSettings{
			liveness:  map[string]CheckFunc{},
			readiness: map[string]CheckFunc{},
			timeout:   time.Second,
		}
		for _, opt := range opts {
			opt(s)
		}
		o.health = s
	}
}

// WithHealthPrefix mounts the probes below prefix, e.g. "/_system".
func WithHealthPrefix(prefix string) HealthOption {
	return func(s *healthSettings) { s.prefix = strings.TrimRight(prefix, "/") }
}

// WithHealthTimeout bounds each check. Default: 1s.
func WithHealthTimeout(d time.Duration) HealthOption {
	return func(s *healthSettings) { s.timeout = d }
}

// WithLivenessCheck adds a check to /healthz. Liveness checks should only
// cover the process itself.
func WithLivenessCheck(name string, check CheckFunc) HealthOption {
	return func(s *healthSettings) { s.liveness[name] = check }
}

// WithReadinessCheck adds a check to /readyz, typically for databases and
// downstream services.
func WithReadinessCheck(name string, check CheckFunc) HealthOption {
	return func(s *healthSettings) { s.readiness[name] = check }
}

// unhealthyError is a 503 carrying the failed checks.
type unhealthyError struct {
	probe    string
	failures map[string]string
}

func (e *unhealthyError) Error() string {
	return fmt.Sprintf("%s probe failed: %s", e.probe, strings.Join(slices.Sorted(maps.Keys(e.failures)), ", "))
}

func (e *unhealthyError) HTTPStatus() int { return http.StatusServiceUnavailable }
func (e *unhealthyError) Code() string    { return "unhealthy" }
func (e *unhealthyError) Details() any    { return e.failures }

func (a *App) registerHealthEndpoints(s *healthSettings) error {
	probes := []struct {
		name   string
		path   string
		checks map[string]CheckFunc
	}{
		{"liveness", s.livenessPath(), s.liveness},
		{"readiness", s.readinessPath(), s.readiness},
	}
	for _, p := range probes {
		h := router.Handle0(func(req *router.Request, res *router.Response) error {
			res.Header().Set("Cache-Control", "no-store")
			if failures := runChecks(req.Context(), p.checks, s.timeout); len(failures) > 0 {
				return &unhealthyError{probe: p.name, failures: failures}
			}
			res.Text(http.StatusOK, "ok")
			return nil
		})
		if _, err := a.router.AddRoute(router.Methods(router.MethodGet), p.path, h,
			router.WithName("builtin.health."+p.name)); err != nil {
			return err
		}
	}
	return nil
}

// runChecks runs checks concurrently, each under its own timeout, and
// returns the failures by name.
func runChecks(ctx context.Context, checks map[string]CheckFunc, timeout time.Duration) map[string]string {
	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(checks))
	for name, fn := range checks {
		go func() {
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results <- result{name, fn(checkCtx)}
		}()
	}

	failures := make(map[string]string)
	for range len(checks) {
		r := <-results
		if r.err != nil {
			failures[r.name] = r.err.Error()
		}
	}
	return failures
}
