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
	"io"

	"crest.dev/config"
	apperrors "crest.dev/errors"
	"crest.dev/logging"
	"crest.dev/metrics"
	"crest.dev/router"
	"crest.dev/router/middleware/trailingslash"
	"crest.dev/tracing"
)

// Option configures an [App].
type Option func(*options)

type options struct {
	settings    *config.Settings
	logger      *logging.Logger
	logOutput   io.Writer
	formatter   apperrors.Formatter
	routerOpts  []router.Option
	metricsOpts []metrics.Option
	tracingOpts []tracing.Option
	health      *healthSettings
	bannerOut   io.Writer
	slash       *trailingslash.Policy
}

// WithSettings builds the app from s.
func WithSettings(s *config.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithLogger replaces the logger built from the logging settings.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLogOutput sends the logger built from the logging settings to w.
// Default: stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithErrorFormatter replaces the formatter selected by the error settings.
func WithErrorFormatter(f apperrors.Formatter) Option {
	return func(o *options) { o.formatter = f }
}

// WithRouterOptions appends router options after the ones derived from the
// settings, so they take precedence.
func WithRouterOptions(opts ...router.Option) Option {
	return func(o *options) { o.routerOpts = append(o.routerOpts, opts...) }
}

// WithMetricsOptions appends options to the metrics recorder. It has no
// effect unless metrics are enabled.
func WithMetricsOptions(opts ...metrics.Option) Option {
	return func(o *options) { o.metricsOpts = append(o.metricsOpts, opts...) }
}

// WithTracingOptions appends options to the tracer. It has no effect unless
// tracing is enabled.
func WithTracingOptions(opts ...tracing.Option) Option {
	return func(o *options) { o.tracingOpts = append(o.tracingOpts, opts...) }
}

// WithBannerOutput writes the startup banner to w. Default: stdout.
func WithBannerOutput(w io.Writer) Option {
	return func(o *options) { o.bannerOut = w }
}

// WithTrailingSlash redirects requests differing from a rule by a trailing
// slash according to p.
func WithTrailingSlash(p trailingslash.Policy) Option {
	return func(o *options) { o.slash = &p }
}
