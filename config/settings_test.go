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

//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crest.dev/config/codec"
)

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, 30*time.Second, s.Server.ShutdownTimeout)
	assert.True(t, s.Server.Banner)
	assert.Equal(t, "console", s.Logging.Handler)
	assert.Equal(t, "rfc9457", s.Errors.Format)
	assert.True(t, s.Middleware.RequestID.Enabled)
	assert.Equal(t, "uuid", s.Middleware.RequestID.Generator)
	assert.Equal(t, int64(4<<20), s.Middleware.BodyLimit.Limit)
	assert.Equal(t, -1, s.Middleware.Compression.GzipLevel)
	assert.False(t, s.Middleware.CORS.Enabled)
	assert.False(t, s.Metrics.Enabled)
	assert.Equal(t, "/metrics", s.Metrics.Path)
	assert.InDelta(t, 1.0, s.Tracing.SampleRate, 1e-9)
}

func TestLoadSettings_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  h2c: true
  read_timeout: 3s
logging:
  handler: json
middleware:
  cors:
    enabled: true
    allowed_origins: ["https://app.example"]
  ratelimit:
    enabled: true
    rps: 50
`), 0o600))

	t.Setenv("CRESTSETTINGS_LOGGING_LEVEL", "debug")
	t.Setenv("CRESTSETTINGS_SERVER__SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("CRESTSETTINGS_MIDDLEWARE__RATELIMIT__BURST", "75")
	t.Setenv("CRESTSETTINGS_MIDDLEWARE__REQUESTID__ENABLED", "false")

	s, err := LoadSettings(t.Context(), WithFile(path), WithEnv("CRESTSETTINGS_"))
	require.NoError(t, err)

	assert.Equal(t, ":9000", s.Server.Addr)
	assert.True(t, s.Server.H2C)
	assert.Equal(t, 3*time.Second, s.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, s.Server.ShutdownTimeout)
	assert.Equal(t, 2*time.Second, s.Server.ReadHeaderTimeout)
	assert.Equal(t, "json", s.Logging.Handler)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, []string{"https://app.example"}, s.Middleware.CORS.AllowedOrigins)
	assert.Equal(t, 50, s.Middleware.RateLimit.RequestsPerSecond)
	assert.Equal(t, 75, s.Middleware.RateLimit.Burst)
	assert.False(t, s.Middleware.RequestID.Enabled)
}

func TestLoadSettings_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantSrc string
		wantMsg string
	}{
		{
			name:    "unknown key",
			doc:     `{"server":{"adress":":80"}}`,
			wantSrc: "json-schema",
		},
		{
			name:    "bad enum",
			doc:     `{"logging":{"level":"verbose"}}`,
			wantSrc: "json-schema",
		},
		{
			name:    "bad duration",
			doc:     `{"server":{"shutdown_timeout":"soon"}}`,
			wantSrc: "json-schema",
		},
		{
			name:    "sample rate out of range",
			doc:     `{"tracing":{"sample_rate":1.5}}`,
			wantSrc: "binding",
			wantMsg: "tracing.sample_rate",
		},
		{
			name:    "otlp without endpoint",
			doc:     `{"tracing":{"enabled":true,"provider":"otlp"}}`,
			wantSrc: "binding",
			wantMsg: "tracing.endpoint is required",
		},
		{
			name:    "rate limiter without rate",
			doc:     `{"middleware":{"ratelimit":{"enabled":true,"rps":0}}}`,
			wantSrc: "binding",
			wantMsg: "rps must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadSettings(t.Context(), WithContent([]byte(tt.doc), codec.TypeJSON))
			require.Error(t, err)

			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantSrc, cerr.Source)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestSettingsSchemaIsEmbedded(t *testing.T) {
	t.Parallel()

	assert.Contains(t, string(SettingsSchema()), `"middleware"`)
}
