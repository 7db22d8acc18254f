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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"crest.dev/config"
	apperrors "crest.dev/errors"
	"crest.dev/logging"
	"crest.dev/metrics"
	"crest.dev/router"
	"crest.dev/tracing"
)

// Environments accepted by [config.ServerSettings].
const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

// ErrAlreadyStarted is returned by [App.Start] on a second call.
var ErrAlreadyStarted = errors.New("app: already started")

// App wires a [router.Router] with the logger, middleware, error formatter,
// metrics and tracing described by a [config.Settings].
type App struct {
	settings *config.Settings
	logging  *logging.Logger
	router   *router.Router
	metrics  *metrics.Recorder
	tracing  *tracing.Tracer
	health   *healthSettings
	hooks    *Hooks

	bannerOut io.Writer
	started   atomic.Bool
}

// New builds an App. Without [WithSettings] it uses
// [config.DefaultSettings].
//
//	settings, err := config.LoadSettings(ctx, config.WithFile("crest.yaml"), config.WithEnv(config.EnvPrefix))
//	if err != nil {
//	    return err
//	}
//	a, err := app.New(app.WithSettings(settings))
func New(opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.settings == nil {
		o.settings = config.DefaultSettings()
	}
	s := o.settings

	a := &App{
		settings:  s,
		hooks:     &Hooks{},
		health:    o.health,
		bannerOut: o.bannerOut,
	}
	if a.bannerOut == nil {
		a.bannerOut = os.Stdout
	}

	var err error
	if a.logging, err = buildLogger(s, o); err != nil {
		return nil, fmt.Errorf("app: logging: %w", err)
	}
	logger := a.logging.Logger()

	excluded := a.observabilityExclusions()
	if s.Metrics.Enabled {
		if a.metrics, err = buildMetrics(s, logger, excluded, o.metricsOpts); err != nil {
			return nil, fmt.Errorf("app: metrics: %w", err)
		}
	}
	if s.Tracing.Enabled {
		if a.tracing, err = buildTracing(s, logger, excluded, o.tracingOpts); err != nil {
			return nil, fmt.Errorf("app: tracing: %w", err)
		}
	}

	formatter := o.formatter
	if formatter == nil {
		formatter = buildFormatter(s.Errors)
	}

	ropts := []router.Option{
		router.WithLogger(logger),
		router.WithErrorHandler(apperrors.Handler(formatter, logger)),
		router.WithH2C(s.Server.H2C),
		router.WithDiagnostics(router.DiagnosticHandlerFunc(func(e router.DiagnosticEvent) {
			logger.Debug(e.Message, "kind", e.Kind, "fields", e.Fields)
		})),
	}
	if timeouts := s.Server; timeouts.ReadHeaderTimeout > 0 && timeouts.ReadTimeout > 0 &&
		timeouts.WriteTimeout > 0 && timeouts.IdleTimeout > 0 {
		ropts = append(ropts, router.WithServerTimeouts(
			timeouts.ReadHeaderTimeout, timeouts.ReadTimeout, timeouts.WriteTimeout, timeouts.IdleTimeout,
		))
	}
	if len(s.Server.TrustedProxies) > 0 {
		ropts = append(ropts, router.WithTrustedProxies(router.WithProxies(s.Server.TrustedProxies...)))
	}
	if rec := a.recorder(); rec != nil {
		ropts = append(ropts, router.WithObservability(rec))
	}
	ropts = append(ropts, o.routerOpts...)

	if a.router, err = router.New(ropts...); err != nil {
		return nil, fmt.Errorf("app: router: %w", err)
	}

	if mws := buildMiddleware(s, o, logger, formatter, excluded, a.router); len(mws) > 0 {
		a.router.Use(mws...)
	}

	if err := a.registerBuiltinRoutes(); err != nil {
		return nil, err
	}
	return a, nil
}

// MustNew is [New] that panics on error.
func MustNew(opts ...Option) *App {
	a, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Router returns the router to register routes and blueprints on.
func (a *App) Router() *router.Router { return a.router }

// Mount registers blueprints on the router.
func (a *App) Mount(bps ...*router.Blueprint) error { return a.router.Mount(bps...) }

// Settings returns the settings the app was built from.
func (a *App) Settings() *config.Settings { return a.settings }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logging.Logger() }

// Logging returns the logging configuration, e.g. to change the level at
// runtime.
func (a *App) Logging() *logging.Logger { return a.logging }

// Metrics returns the metrics recorder, or nil when metrics are disabled.
func (a *App) Metrics() *metrics.Recorder { return a.metrics }

// Tracing returns the tracer, or nil when tracing is disabled.
func (a *App) Tracing() *tracing.Tracer { return a.tracing }

// recorder combines the enabled recorders. Metrics run first so spans end
// after the request has been measured.
func (a *App) recorder() router.ObservabilityRecorder {
	var recs []router.ObservabilityRecorder
	if a.metrics != nil {
		recs = append(recs, a.metrics)
	}
	if a.tracing != nil {
		recs = append(recs, a.tracing)
	}
	switch len(recs) {
	case 0:
		return nil
	case 1:
		return recs[0]
	default:
		return router.CombineRecorders(recs...)
	}
}

// observabilityExclusions lists the built-in paths that are not measured,
// traced or access logged.
func (a *App) observabilityExclusions() []string {
	var paths []string
	if a.settings.Metrics.Enabled && a.settings.Metrics.Provider == string(metrics.PrometheusProvider) {
		paths = append(paths, a.settings.Metrics.Path)
	}
	if a.health != nil {
		paths = append(paths, a.health.livenessPath(), a.health.readinessPath())
	}
	return paths
}

// registerBuiltinRoutes adds the metrics scrape endpoint and health probes.
func (a *App) registerBuiltinRoutes() error {
	if a.metrics != nil && a.metrics.Provider() == metrics.PrometheusProvider {
		h, err := a.metrics.Handler()
		if err != nil {
			return fmt.Errorf("app: metrics handler: %w", err)
		}
		if _, err := a.router.AddRoute(router.Methods(router.MethodGet), a.settings.Metrics.Path,
			router.WrapHTTP(h), router.WithName("builtin.metrics")); err != nil {
			return fmt.Errorf("app: metrics route: %w", err)
		}
	}
	if a.health != nil {
		if err := a.registerHealthEndpoints(a.health); err != nil {
			return fmt.Errorf("app: health: %w", err)
		}
	}
	return nil
}
