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
	"log/slog"
	"slices"

	"crest.dev/config"
	apperrors "crest.dev/errors"
	"crest.dev/logging"
	"crest.dev/metrics"
	"crest.dev/router"
	"crest.dev/router/middleware/accesslog"
	"crest.dev/router/middleware/bodylimit"
	"crest.dev/router/middleware/compression"
	"crest.dev/router/middleware/cors"
	"crest.dev/router/middleware/ratelimit"
	"crest.dev/router/middleware/recovery"
	"crest.dev/router/middleware/requestid"
	"crest.dev/router/middleware/security"
	"crest.dev/router/middleware/timeout"
	"crest.dev/router/middleware/trailingslash"
	"crest.dev/tracing"
)

func buildLogger(s *config.Settings, o *options) (*logging.Logger, error) {
	if o.logger != nil {
		return o.logger, nil
	}
	handler, err := logging.ParseHandlerType(s.Logging.Handler)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(s.Logging.Level)
	if err != nil {
		return nil, err
	}
	opts := []logging.Option{
		logging.WithHandlerType(handler),
		logging.WithLevel(level),
		logging.WithServiceName(s.Server.Name),
		logging.WithServiceVersion(s.Server.Version),
		logging.WithEnvironment(s.Server.Environment),
		logging.WithSource(s.Logging.Source),
	}
	if o.logOutput != nil {
		opts = append(opts, logging.WithOutput(o.logOutput))
	}
	if s.Server.Environment == EnvironmentProduction {
		opts = append(opts, logging.WithoutColor())
	}
	return logging.New(opts...)
}

func buildMetrics(s *config.Settings, logger *slog.Logger, excluded []string, extra []metrics.Option) (*metrics.Recorder, error) {
	opts := []metrics.Option{
		metrics.WithServiceName(s.Server.Name),
		metrics.WithServiceVersion(s.Server.Version),
		metrics.WithLogger(logger),
		metrics.WithExcludePaths(excluded...),
	}
	switch metrics.Provider(s.Metrics.Provider) {
	case metrics.OTLPProvider:
		opts = append(opts, metrics.WithOTLP(s.Metrics.Endpoint))
	case metrics.StdoutProvider:
		opts = append(opts, metrics.WithStdout(nil))
	default:
		opts = append(opts, metrics.WithPrometheus())
	}
	return metrics.New(append(opts, extra...)...)
}

func buildTracing(s *config.Settings, logger *slog.Logger, excluded []string, extra []tracing.Option) (*tracing.Tracer, error) {
	opts := []tracing.Option{
		tracing.WithServiceName(s.Server.Name),
		tracing.WithServiceVersion(s.Server.Version),
		tracing.WithSampleRate(s.Tracing.SampleRate),
		tracing.WithLogger(logger),
		tracing.WithExcludePaths(excluded...),
	}
	switch tracing.Provider(s.Tracing.Provider) {
	case tracing.OTLPProvider:
		opts = append(opts, tracing.WithOTLP(s.Tracing.Endpoint))
	case tracing.OTLPGRPCProvider:
		opts = append(opts, tracing.WithOTLPGRPC(s.Tracing.Endpoint))
	default:
		opts = append(opts, tracing.WithStdout(nil))
	}
	if s.Tracing.Insecure {
		opts = append(opts, tracing.WithInsecure())
	}
	return tracing.New(append(opts, extra...)...)
}

func buildFormatter(s config.ErrorSettings) apperrors.Formatter {
	switch s.Format {
	case "simple":
		return &apperrors.Simple{ExposeInternal: s.ExposeInternal}
	case "jsonapi":
		return &apperrors.JSONAPI{ExposeInternal: s.ExposeInternal}
	default:
		return &apperrors.RFC9457{BaseURL: s.BaseURL, ExposeInternal: s.ExposeInternal}
	}
}

// buildMiddleware returns the global middleware enabled by the settings in
// execution order. Recovery comes first so its after phase sees panics from
// everything behind it.
func buildMiddleware(s *config.Settings, o *options, logger *slog.Logger, formatter apperrors.Formatter, excluded []string, r *router.Router) []*router.Middleware {
	m := s.Middleware
	var mws []*router.Middleware

	if m.Recovery.Enabled {
		handle := apperrors.Handler(formatter, nil)
		mws = append(mws, recovery.New(
			recovery.WithStackTrace(m.Recovery.StackTrace),
			recovery.WithLogger(func(req *router.Request, v any, stack []byte) {
				attrs := []any{"method", req.RawMethod, "path", req.Path, "panic", v}
				if len(stack) > 0 {
					attrs = append(attrs, "stack", string(stack))
				}
				logger.ErrorContext(req.Context(), "handler panic recovered", attrs...)
			}),
			recovery.WithHandler(func(req *router.Request, res *router.Response, v any) {
				handle(req, res, &router.PanicError{Value: v})
			}),
		))
	}

	if m.RequestID.Enabled {
		opts := []requestid.Option{
			requestid.WithHeader(m.RequestID.Header),
			requestid.WithAllowClientID(m.RequestID.AllowClientID),
		}
		if m.RequestID.Generator == "ulid" {
			opts = append(opts, requestid.WithULID())
		}
		mws = append(mws, requestid.New(opts...))
	}

	if m.AccessLog.Enabled {
		opts := []accesslog.Option{
			accesslog.WithLogger(logger),
			accesslog.WithSampleRate(m.AccessLog.SampleRate),
			accesslog.WithExcludePaths(append(slices.Clone(m.AccessLog.ExcludePaths), excluded...)...),
		}
		if m.AccessLog.ErrorsOnly {
			opts = append(opts, accesslog.WithErrorsOnly())
		}
		if m.AccessLog.SlowThreshold > 0 {
			opts = append(opts, accesslog.WithSlowThreshold(m.AccessLog.SlowThreshold))
		}
		mws = append(mws, accesslog.New(opts...))
	}

	if o.slash != nil {
		mws = append(mws, trailingslash.New(r, trailingslash.WithPolicy(*o.slash)))
	}

	switch m.Security.Preset {
	case "off":
	case "development":
		mws = append(mws, security.New(security.WithDevelopmentDefaults()))
	default:
		mws = append(mws, security.New())
	}

	if m.CORS.Enabled {
		mws = append(mws, cors.New(
			cors.WithAllowedOrigins(m.CORS.AllowedOrigins...),
			cors.WithAllowCredentials(m.CORS.AllowCredentials),
			cors.WithMaxAge(m.CORS.MaxAge),
		))
	}

	if m.RateLimit.Enabled {
		opts := []ratelimit.Option{
			ratelimit.WithRequestsPerSecond(m.RateLimit.RequestsPerSecond),
			ratelimit.WithBurst(m.RateLimit.Burst),
			ratelimit.WithLogger(logger),
		}
		if m.RateLimit.ReportOnly {
			opts = append(opts, ratelimit.WithReportOnly())
		}
		mws = append(mws, ratelimit.New(opts...))
	}

	if m.BodyLimit.Enabled {
		mws = append(mws, bodylimit.New(bodylimit.WithLimit(m.BodyLimit.Limit)))
	}

	if m.Timeout.Duration > 0 {
		mws = append(mws, timeout.New(m.Timeout.Duration,
			timeout.WithLogger(logger),
			timeout.WithSkipPaths(excluded...),
		))
	}

	if m.Compression.Enabled {
		opts := []compression.Option{
			compression.WithGzipLevel(m.Compression.GzipLevel),
			compression.WithBrotliLevel(m.Compression.BrotliLevel),
			compression.WithMinSize(m.Compression.MinSize),
			compression.WithLogger(logger),
			compression.WithExcludePaths(excluded...),
		}
		if m.Compression.BrotliDisabled {
			opts = append(opts, compression.WithBrotliDisabled())
		}
		mws = append(mws, compression.New(opts...))
	}
	return mws
}
