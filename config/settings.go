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

package config

import (
	"context"
	_ "embed"
	"errors"
	"time"
)

// EnvPrefix is the prefix of environment variables read by [LoadSettings].
const EnvPrefix = "CREST_"

//go:embed settings.schema.json
var settingsSchema []byte

// SettingsSchema returns the JSON Schema that [LoadSettings] validates the
// merged map against.
func SettingsSchema() []byte { return settingsSchema }

// Settings describes a crest server.
type Settings struct {
	Server     ServerSettings     `config:"server"`
	Logging    LoggingSettings    `config:"logging"`
	Errors     ErrorSettings      `config:"errors"`
	Middleware MiddlewareSettings `config:"middleware"`
	Metrics    MetricsSettings    `config:"metrics"`
	Tracing    TracingSettings    `config:"tracing"`
}

type ServerSettings struct {
	Name              string        `config:"name" default:"crest" validate:"required"`
	Version           string        `config:"version" default:"dev"`
	Environment       string        `config:"environment" default:"development" validate:"oneof=development staging production"`
	Addr              string        `config:"addr" default:":8080" validate:"required"`
	H2C               bool          `config:"h2c"`
	ReadTimeout       time.Duration `config:"read_timeout" default:"10s" validate:"gte=0"`
	ReadHeaderTimeout time.Duration `config:"read_header_timeout" default:"2s" validate:"gte=0"`
	WriteTimeout      time.Duration `config:"write_timeout" default:"10s" validate:"gte=0"`
	IdleTimeout       time.Duration `config:"idle_timeout" default:"60s" validate:"gte=0"`
	ShutdownTimeout   time.Duration `config:"shutdown_timeout" default:"30s" validate:"gt=0"`
	Banner            bool          `config:"banner" default:"true"`
	// TrustedProxies lists the proxy ranges whose forwarding headers
	// are honored when resolving the client address.
	TrustedProxies []string `config:"trusted_proxies" validate:"dive,cidr|ip"`
}

type LoggingSettings struct {
	Handler string `config:"handler" default:"console" validate:"oneof=json text console"`
	Level   string `config:"level" default:"info" validate:"oneof=debug info warn error"`
	Source  bool   `config:"source"`
}

type ErrorSettings struct {
	// Format selects the error body: rfc9457, simple or jsonapi.
	Format         string `config:"format" default:"rfc9457" validate:"oneof=rfc9457 simple jsonapi"`
	BaseURL        string `config:"base_url" validate:"omitempty,url"`
	ExposeInternal bool   `config:"expose_internal"`
}

type MiddlewareSettings struct {
	RequestID   RequestIDSettings   `config:"requestid"`
	Recovery    RecoverySettings    `config:"recovery"`
	AccessLog   AccessLogSettings   `config:"accesslog"`
	CORS        CORSSettings        `config:"cors"`
	RateLimit   RateLimitSettings   `config:"ratelimit"`
	Compression CompressionSettings `config:"compression"`
	BodyLimit   BodyLimitSettings   `config:"bodylimit"`
	Security    SecuritySettings    `config:"security"`
	Timeout     TimeoutSettings     `config:"timeout"`
}

type RequestIDSettings struct {
	Enabled       bool   `config:"enabled" default:"true"`
	Generator     string `config:"generator" default:"uuid" validate:"oneof=uuid ulid"`
	Header        string `config:"header" default:"X-Request-ID" validate:"required"`
	AllowClientID bool   `config:"allow_client_id" default:"true"`
}

type RecoverySettings struct {
	Enabled    bool `config:"enabled" default:"true"`
	StackTrace bool `config:"stack_trace" default:"true"`
}

type AccessLogSettings struct {
	Enabled       bool          `config:"enabled" default:"true"`
	SampleRate    float64       `config:"sample_rate" default:"1" validate:"gte=0,lte=1"`
	SlowThreshold time.Duration `config:"slow_threshold" validate:"gte=0"`
	ErrorsOnly    bool          `config:"errors_only"`
	ExcludePaths  []string      `config:"exclude_paths"`
}

type CORSSettings struct {
	Enabled          bool     `config:"enabled"`
	AllowedOrigins   []string `config:"allowed_origins"`
	AllowCredentials bool     `config:"allow_credentials"`
	MaxAge           int      `config:"max_age" validate:"gte=0"`
}

type RateLimitSettings struct {
	Enabled           bool `config:"enabled"`
	RequestsPerSecond int  `config:"rps" default:"100" validate:"gte=0"`
	Burst             int  `config:"burst" default:"200" validate:"gte=0"`
	ReportOnly        bool `config:"report_only"`
}

type CompressionSettings struct {
	Enabled        bool `config:"enabled" default:"true"`
	MinSize        int  `config:"min_size" default:"1024" validate:"gte=0"`
	GzipLevel      int  `config:"gzip_level" default:"-1" validate:"gte=-1,lte=9"`
	BrotliLevel    int  `config:"brotli_level" default:"4" validate:"gte=0,lte=11"`
	BrotliDisabled bool `config:"brotli_disabled"`
}

type BodyLimitSettings struct {
	Enabled bool  `config:"enabled" default:"true"`
	Limit   int64 `config:"limit" default:"4194304" validate:"gt=0"`
}

type SecuritySettings struct {
	// Preset is default, development (no HSTS, relaxed CSP) or off.
	Preset string `config:"preset" default:"default" validate:"oneof=default development off"`
}

type TimeoutSettings struct {
	// Duration bounds handler execution; zero disables the middleware.
	Duration time.Duration `config:"duration" validate:"gte=0"`
}

type MetricsSettings struct {
	Enabled  bool   `config:"enabled"`
	Provider string `config:"provider" default:"prometheus" validate:"oneof=prometheus otlp stdout"`
	Endpoint string `config:"endpoint"`
	Path     string `config:"path" default:"/metrics" validate:"startswith=/"`
}

type TracingSettings struct {
	Enabled    bool    `config:"enabled"`
	Provider   string  `config:"provider" default:"stdout" validate:"oneof=stdout otlp otlp-grpc"`
	Endpoint   string  `config:"endpoint"`
	Insecure   bool    `config:"insecure"`
	SampleRate float64 `config:"sample_rate" default:"1" validate:"gte=0,lte=1"`
}

// Validate checks rules that span fields.
func (s *Settings) Validate() error {
	var errs error
	if s.Middleware.RateLimit.Enabled && s.Middleware.RateLimit.RequestsPerSecond == 0 {
		errs = errors.Join(errs, errors.New("middleware.ratelimit.rps must be positive when the rate limiter is enabled"))
	}
	if s.Metrics.Enabled && s.Metrics.Provider == "otlp" && s.Metrics.Endpoint == "" {
		errs = errors.Join(errs, errors.New("metrics.endpoint is required for the otlp provider"))
	}
	if s.Tracing.Enabled && s.Tracing.Provider != "stdout" && s.Tracing.Endpoint == "" {
		errs = errors.Join(errs, errors.New("tracing.endpoint is required for the "+s.Tracing.Provider+" provider"))
	}
	return errs
}

// DefaultSettings returns Settings holding only the `default` tag values.
func DefaultSettings() *Settings {
	s, err := LoadSettings(context.Background())
	if err != nil {
		panic("config: invalid default settings: " + err.Error())
	}
	return s
}

// LoadSettings loads Settings from opts, typically [WithFile] followed by
// [WithEnv]([EnvPrefix]), validating against [SettingsSchema].
//
//	s, err := config.LoadSettings(ctx,
//	    config.WithFile("crest.yaml"),
//	    config.WithEnv(config.EnvPrefix),
//	)
func LoadSettings(ctx context.Context, opts ...Option) (*Settings, error) {
	var s Settings
	all := append([]Option{WithJSONSchema(settingsSchema)}, opts...)
	all = append(all, WithBinding(&s))
	c, err := New(all...)
	if err != nil {
		return nil, err
	}
	if err = c.Load(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}
