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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"crest.dev/config/codec"
	"crest.dev/config/source"
)

// Option configures a [Config].
type Option func(c *Config) error

// Config merges sources into one map and optionally binds it to a struct.
// It is safe for concurrent use once built.
type Config struct {
	mu     sync.RWMutex
	values map[string]any

	sources    []Source
	binding    any
	tagName    string
	schema     *jsonschema.Schema
	validators []func(map[string]any) error
}

// WithSource appends a custom source.
func WithSource(src Source) Option {
	return func(c *Config) error {
		if src == nil {
			return errors.New("source cannot be nil")
		}
		c.sources = append(c.sources, src)
		return nil
	}
}

// WithFile appends a file source; the format comes from the extension
// (.yaml, .yml, .json, .toml). Environment references in path are expanded.
func WithFile(path string) Option {
	return func(c *Config) error {
		path = os.ExpandEnv(path)
		format, err := detectFormat(path)
		if err != nil {
			return NewError("file-source", "detect-format", err)
		}
		return WithFileAs(path, format)(c)
	}
}

// WithFileAs appends a file source decoded with the named codec.
func WithFileAs(path string, format codec.Type) Option {
	return func(c *Config) error {
		decoder, err := codec.GetDecoder(format)
		if err != nil {
			return NewError("file-source", "get-decoder", err)
		}
		c.sources = append(c.sources, source.NewFile(os.ExpandEnv(path), decoder))
		return nil
	}
}

// WithContent appends an in-memory document.
func WithContent(data []byte, format codec.Type) Option {
	return func(c *Config) error {
		decoder, err := codec.GetDecoder(format)
		if err != nil {
			return NewError("content-source", "get-decoder", err)
		}
		c.sources = append(c.sources, source.NewFileContent(data, decoder))
		return nil
	}
}

// WithEnv appends the process environment, keeping variables that start
// with prefix. CREST_SERVER_ADDR becomes server.addr; use a double
// underscore when a key holds underscores (CREST_SERVER__READ_TIMEOUT).
func WithEnv(prefix string) Option {
	return func(c *Config) error {
		c.sources = append(c.sources, source.NewOSEnvVar(prefix))
		return nil
	}
}

// WithConsul appends a Consul KV document; the format comes from the key's
// extension. The option is a no-op when CONSUL_HTTP_ADDR is unset.
func WithConsul(key string, opts ...source.ConsulOption) Option {
	return func(c *Config) error {
		format, err := detectFormat(key)
		if err != nil {
			return NewError("consul-source", "detect-format", err)
		}
		return WithConsulAs(key, format, opts...)(c)
	}
}

// WithConsulAs is [WithConsul] with an explicit codec, including the
// scalar caster codecs.
func WithConsulAs(key string, format codec.Type, opts ...source.ConsulOption) Option {
	return func(c *Config) error {
		if os.Getenv("CONSUL_HTTP_ADDR") == "" {
			return nil
		}
		decoder, err := codec.GetDecoder(format)
		if err != nil {
			return NewError("consul-source", "get-decoder", err)
		}
		src, err := source.NewConsul(os.ExpandEnv(key), decoder, opts...)
		if err != nil {
			return NewError("consul-source", "create-client", err)
		}
		c.sources = append(c.sources, src)
		return nil
	}
}

// WithBinding decodes the merged values into v, a pointer to a struct, on
// every successful [Config.Load].
func WithBinding(v any) Option {
	return func(c *Config) error {
		if v == nil {
			return errors.New("binding target cannot be nil")
		}
		t := reflect.TypeOf(v)
		if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
			return errors.New("binding target must be a pointer to a struct")
		}
		c.binding = v
		return nil
	}
}

// WithTag sets the struct tag used for binding. Default: "config".
func WithTag(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return errors.New("tag name cannot be empty")
		}
		c.tagName = name
		return nil
	}
}

var schemaSeq atomic.Uint64

// WithJSONSchema validates the merged map against schema before binding.
func WithJSONSchema(schema []byte) Option {
	return func(c *Config) error {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
		if err != nil {
			return NewError("json-schema", "parse", err)
		}
		name := fmt.Sprintf("inline_%d.json", schemaSeq.Add(1))
		compiler := jsonschema.NewCompiler()
		if err = compiler.AddResource(name, doc); err != nil {
			return NewError("json-schema", "compile", err)
		}
		if c.schema, err = compiler.Compile(name); err != nil {
			return NewError("json-schema", "compile", err)
		}
		return nil
	}
}

// WithValidator adds a check over the merged map. Validators run after the
// schema and before binding.
func WithValidator(fn func(map[string]any) error) Option {
	return func(c *Config) error {
		if fn == nil {
			return errors.New("validator cannot be nil")
		}
		c.validators = append(c.validators, fn)
		return nil
	}
}

// New builds a Config. All option errors are joined.
func New(opts ...Option) (*Config, error) {
	c := &Config{values: map[string]any{}, tagName: "config"}
	var errs error
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		errs = errors.Join(errs, opt(c))
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}

// MustNew is [New] that panics on error.
func MustNew(opts ...Option) *Config {
	c, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return c
}

// Load reads every source in order, later sources overriding earlier ones,
// then validates and binds. On error the previous values are kept.
func (c *Config) Load(ctx context.Context) error {
	values, err := c.merge(ctx)
	if err != nil {
		return err
	}

	if c.schema != nil {
		if err = c.schema.Validate(values); err != nil {
			return NewError("json-schema", "validate", err)
		}
	}

	for i, fn := range c.validators {
		if err = runValidator(fn, values); err != nil {
			return NewError(fmt.Sprintf("validator[%d]", i), "validate", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.binding != nil {
		if err = c.bind(values); err != nil {
			return err
		}
	}
	c.values = values
	return nil
}

// MustLoad is [Config.Load] that panics on error.
func (c *Config) MustLoad(ctx context.Context) {
	if err := c.Load(ctx); err != nil {
		panic(err)
	}
}

func (c *Config) merge(ctx context.Context) (map[string]any, error) {
	merged := map[string]any{}
	for i, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conf, err := src.Load(ctx)
		if err != nil {
			return nil, NewError(fmt.Sprintf("source[%d]", i), "load", err)
		}
		if err = mergo.Map(&merged, normalizeKeys(conf), mergo.WithOverride); err != nil {
			return nil, NewError(fmt.Sprintf("source[%d]", i), "merge", err)
		}
	}
	return merged, nil
}

func runValidator(fn func(map[string]any) error, values map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panic: %v", r)
		}
	}()
	return fn(values)
}

func normalizeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = normalizeKeys(nested)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

// bind decodes values into a fresh copy of the binding so a failed load
// leaves the caller's struct untouched. Defaults are applied first and act
// as the lowest layer.
func (c *Config) bind(values map[string]any) error {
	target := reflect.New(reflect.TypeOf(c.binding).Elem())
	if err := applyDefaults(target.Elem()); err != nil {
		return NewError("binding", "defaults", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          c.tagName,
		Squash:           true,
		WeaklyTypedInput: true,
		Result:           target.Interface(),
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return NewError("binding", "decode", err)
	}
	if err = decoder.Decode(values); err != nil {
		return NewError("binding", "decode", err)
	}

	if err = c.validateStruct(target.Interface()); err != nil {
		return err
	}

	reflect.ValueOf(c.binding).Elem().Set(target.Elem())
	return nil
}

// Values returns a shallow copy of the merged map.
func (c *Config) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}

// Dump writes the merged values to w with the named encoder.
func (c *Config) Dump(w io.Writer, format codec.Type) error {
	encoder, err := codec.GetEncoder(format)
	if err != nil {
		return NewError("dump", "get-encoder", err)
	}
	data, err := encoder.Encode(c.Values())
	if err != nil {
		return NewError("dump", "encode", err)
	}
	if _, err = w.Write(data); err != nil {
		return NewError("dump", "write", err)
	}
	return nil
}

func (c *Config) lookup(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key = strings.ToLower(key)
	if v, ok := c.values[key]; ok {
		return v
	}
	cur := c.values
	segments := strings.Split(key, ".")
	for i, seg := range segments {
		v, ok := cur[seg]
		if !ok {
			return nil
		}
		if i == len(segments)-1 {
			return v
		}
		if cur, ok = v.(map[string]any); !ok {
			return nil
		}
	}
	return nil
}
