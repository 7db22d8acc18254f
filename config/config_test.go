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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crest.dev/config/codec"
)

type mapSource map[string]any

func (m mapSource) Load(context.Context) (map[string]any, error) { return m, nil }

type failingSource struct{ err error }

func (f failingSource) Load(context.Context) (map[string]any, error) { return nil, f.err }

func TestLoad_LaterSourcesWin(t *testing.T) {
	t.Parallel()

	c, err := New(
		WithContent([]byte("server:\n  addr: \":8080\"\n  name: base\n"), codec.TypeYAML),
		WithContent([]byte(`{"Server":{"Addr":":9090"}}`), codec.TypeJSON),
	)
	require.NoError(t, err)
	require.NoError(t, c.Load(t.Context()))

	assert.Equal(t, ":9090", c.String("server.addr"))
	assert.Equal(t, "base", c.String("SERVER.NAME"))
	assert.Nil(t, c.Get("server.missing"))
	assert.Nil(t, c.Get("server.addr.deeper"))
}

func TestNew_JoinsOptionErrors(t *testing.T) {
	t.Parallel()

	_, err := New(
		WithFile("settings.ini"),
		WithSource(nil),
		WithTag(""),
		WithBinding(struct{}{}),
	)
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "file-source", cerr.Source)
	assert.Contains(t, err.Error(), "tag name cannot be empty")
	assert.Contains(t, err.Error(), "pointer to a struct")
}

func TestWithConsul_SkippedWithoutAgent(t *testing.T) {
	t.Setenv("CONSUL_HTTP_ADDR", "")

	c, err := New(WithConsul("crest/settings.yaml"))
	require.NoError(t, err)
	assert.Empty(t, c.sources)
}

func TestLoad_SourceErrorKeepsValues(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	healthy := mapSource{"a": 1}
	c := MustNew(WithSource(healthy))
	require.NoError(t, c.Load(t.Context()))

	c.sources = append(c.sources, failingSource{err: boom})
	err := c.Load(t.Context())
	require.ErrorIs(t, err, boom)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "source[1]", cerr.Source)
	assert.Equal(t, "load", cerr.Op)
	assert.Equal(t, 1, c.Int("a"))
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := MustNew(WithSource(mapSource{})).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad_Validators(t *testing.T) {
	t.Parallel()

	c := MustNew(
		WithSource(mapSource{"port": 80}),
		WithValidator(func(m map[string]any) error {
			if m["port"] == 80 {
				return errors.New("privileged port")
			}
			return nil
		}),
	)
	err := c.Load(t.Context())
	require.ErrorContains(t, err, "privileged port")

	c = MustNew(
		WithSource(mapSource{}),
		WithValidator(func(map[string]any) error { panic("bad validator") }),
	)
	err = c.Load(t.Context())
	require.ErrorContains(t, err, "validator panic: bad validator")
}

func TestLoad_JSONSchema(t *testing.T) {
	t.Parallel()

	schema := []byte(`{
		"type": "object",
		"properties": {"port": {"type": "integer", "minimum": 1}},
		"required": ["port"]
	}`)

	c := MustNew(WithSource(mapSource{"port": 0}), WithJSONSchema(schema))
	err := c.Load(t.Context())
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "json-schema", cerr.Source)

	c = MustNew(WithSource(mapSource{"port": 8080}), WithJSONSchema(schema))
	require.NoError(t, c.Load(t.Context()))

	_, err = New(WithJSONSchema([]byte("{")))
	require.Error(t, err)
}

type appConfig struct {
	Name    string        `config:"name" default:"svc" validate:"required"`
	Port    int           `config:"port" default:"8080" validate:"gte=1,lte=65535"`
	Debug   bool          `config:"debug" default:"true"`
	Timeout time.Duration `config:"timeout" default:"5s"`
	Tags    []string      `config:"tags" default:"a,b"`
	DB      struct {
		Host string `config:"host" default:"localhost"`
		Pool int    `config:"pool_size" validate:"gte=0"`
	} `config:"db"`
}

func (a *appConfig) Validate() error {
	if a.Name == "forbidden" {
		return errors.New("name is reserved")
	}
	return nil
}

func TestBinding_DefaultsAreLowestLayer(t *testing.T) {
	t.Parallel()

	var cfg appConfig
	c := MustNew(WithBinding(&cfg))
	require.NoError(t, c.Load(t.Context()))

	assert.Equal(t, "svc", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	assert.Equal(t, "localhost", cfg.DB.Host)

	c = MustNew(
		WithSource(mapSource{
			"port":    "9000",
			"debug":   "false",
			"timeout": "250ms",
			"tags":    "x, y",
			"db":      map[string]any{"pool_size": 4},
		}),
		WithBinding(&cfg),
	)
	require.NoError(t, c.Load(t.Context()))

	assert.Equal(t, 9000, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"x", " y"}, cfg.Tags)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 4, cfg.DB.Pool)
}

func TestBinding_ValidationFailureLeavesTargetUntouched(t *testing.T) {
	t.Parallel()

	cfg := appConfig{Name: "before"}
	c := MustNew(WithSource(mapSource{"port": 70000, "db": map[string]any{"pool_size": -1}}), WithBinding(&cfg))

	err := c.Load(t.Context())
	require.Error(t, err)
	assert.Equal(t, "before", cfg.Name)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "binding", cerr.Source)
	assert.Contains(t, err.Error(), "binding.port")
	assert.Contains(t, err.Error(), "binding.db.pool_size")

	c = MustNew(WithSource(mapSource{"name": "forbidden"}), WithBinding(&cfg))
	require.ErrorContains(t, c.Load(t.Context()), "name is reserved")
}

func TestBinding_CustomTag(t *testing.T) {
	t.Parallel()

	var cfg struct {
		Addr string `yaml:"listen"`
	}
	c := MustNew(
		WithContent([]byte("listen: \":7000\"\n"), codec.TypeYAML),
		WithTag("yaml"),
		WithBinding(&cfg),
	)
	require.NoError(t, c.Load(t.Context()))
	assert.Equal(t, ":7000", cfg.Addr)
}

func TestGetters(t *testing.T) {
	t.Parallel()

	c := MustNew(WithSource(mapSource{
		"port":    "8080",
		"ratio":   0.25,
		"enabled": "true",
		"wait":    "1m",
		"origins": "https://a.example, https://b.example",
		"list":    []any{"x", "y"},
		"labels":  map[string]any{"team": "edge"},
	}))
	require.NoError(t, c.Load(t.Context()))

	assert.Equal(t, 8080, Get[int](c, "port"))
	assert.Equal(t, "8080", Get[string](c, "port"))
	assert.InDelta(t, 0.25, Get[float64](c, "ratio"), 1e-9)
	assert.True(t, c.Bool("enabled"))
	assert.Equal(t, time.Minute, c.Duration("wait"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.StringSlice("origins"))
	assert.Equal(t, []string{"x", "y"}, Get[[]string](c, "list"))
	assert.Equal(t, map[string]string{"team": "edge"}, Get[map[string]string](c, "labels"))

	assert.Equal(t, 3, GetOr(c, "missing", 3))
	assert.Equal(t, 3, GetOr(c, "enabled.x", 3))

	_, err := GetE[int](c, "missing")
	require.ErrorContains(t, err, "not found")
	_, err = GetE[int](c, "origins")
	require.ErrorContains(t, err, "cannot convert")
	_, err = GetE[struct{}](c, "port")
	require.Error(t, err)

	var nilConfig *Config
	assert.Empty(t, nilConfig.String("port"))
	assert.Equal(t, 1, GetOr(nilConfig, "port", 1))
}

func TestValuesIsACopy(t *testing.T) {
	t.Parallel()

	c := MustNew(WithSource(mapSource{"a": "1"}))
	require.NoError(t, c.Load(t.Context()))

	v := c.Values()
	v["a"] = "2"
	assert.Equal(t, "1", c.String("a"))
}

func TestDump(t *testing.T) {
	t.Parallel()

	c := MustNew(WithContent([]byte("b = 2\n[a]\nx = \"y\"\n"), codec.TypeTOML))
	require.NoError(t, c.Load(t.Context()))

	var buf bytes.Buffer
	require.NoError(t, c.Dump(&buf, codec.TypeJSON))
	assert.JSONEq(t, `{"a":{"x":"y"},"b":2}`, buf.String())

	err := c.Dump(&buf, codec.TypeEnvVar)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "get-encoder", cerr.Op)
}

func TestError(t *testing.T) {
	t.Parallel()

	inner := errors.New("inner")
	assert.Equal(t, "config: source[0]: load: inner", NewError("source[0]", "load", inner).Error())
	err := NewFieldError("binding", "server.addr", "validate", inner)
	assert.Equal(t, "config: binding.server.addr: validate: inner", err.Error())
	assert.ErrorIs(t, err, inner)
}
