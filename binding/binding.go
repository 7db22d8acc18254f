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


package binding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"crest.dev/router"
)

// Validator checks a bound value. *validator.Validate from
// go-playground/validator satisfies it through [ValidatorFunc].
type Validator interface {
	Validate(v any) error
}

// ValidatorFunc adapts a function to [Validator].
type ValidatorFunc func(v any) error

func (f ValidatorFunc) Validate(v any) error { return f(v) }

// Option configures a bind call.
type Option func(*config)

type config struct {
	validator       Validator
	disallowUnknown bool
}

// WithValidator runs v on the value once binding succeeded.
func WithValidator(v Validator) Option {
	return func(c *config) {
		c.validator = v
	}
}

// WithDisallowUnknown rejects bodies with fields the target does not have.
// Query binding always ignores unknown parameters.
func WithDisallowUnknown() Option {
	return func(c *config) {
		c.disallowUnknown = true
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Body decodes the request body into out, a non-nil pointer, according to
// the Content-Type header. Read errors are returned wrapped, so a body limit
// error stays detectable with [errors.Is].
func Body(req *router.Request, out any, opts ...Option) error {
	if err := checkTarget(out); err != nil {
		return err
	}
	cfg := applyOptions(opts)
	if err := bodyInto(req, out, cfg); err != nil {
		return err
	}
	return validate(out, cfg)
}

func bodyInto(req *router.Request, out any, cfg *config) error {
	source, err := sourceOf(req.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	if _, ok := out.(proto.Message); source == SourceProto && !ok {
		return ErrNotProtoMessage
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("binding: read body: %w", err)
	}
	if err := decode(source, data, out, cfg); err != nil {
		return &DecodeError{Source: source, Err: err}
	}
	return nil
}

// BodyAs is the generic form of [Body].
func BodyAs[T any](req *router.Request, opts ...Option) (T, error) {
	var out T
	err := Body(req, &out, opts...)
	return out, err
}

// Query binds the request's query parameters into out, a pointer to a
// struct.
func Query(req *router.Request, out any, opts ...Option) error {
	if err := bindQuery(req.Query, out); err != nil {
		return err
	}
	return validate(out, applyOptions(opts))
}

// QueryAs is the generic form of [Query].
func QueryAs[T any](req *router.Request, opts ...Option) (T, error) {
	var out T
	err := Query(req, &out, opts...)
	return out, err
}

// Bind applies query parameters, then the body when there is one, then the
// validator. Body fields win over query fields of the same struct.
func Bind(req *router.Request, out any, opts ...Option) error {
	cfg := applyOptions(opts)
	if err := bindQuery(req.Query, out); err != nil {
		return err
	}
	if hasBody(req) {
		if err := bodyInto(req, out, cfg); err != nil {
			return err
		}
	}
	return validate(out, cfg)
}

func hasBody(req *router.Request) bool {
	if hr := req.HTTP(); hr != nil {
		return hr.ContentLength != 0
	}
	return req.Body != nil && req.Body != http.NoBody
}

func checkTarget(out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrOutMustBePointer
	}
	return nil
}

func validate(out any, cfg *config) error {
	if cfg.validator == nil {
		return nil
	}
	return cfg.validator.Validate(out)
}

// sourceOf maps a Content-Type to its decoder.
func sourceOf(contentType string) (Source, error) {
	if contentType == "" {
		return SourceJSON, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", &MediaTypeError{ContentType: contentType}
	}
	switch mt {
	case "application/json":
		return SourceJSON, nil
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return SourceYAML, nil
	case "application/toml":
		return SourceTOML, nil
	case "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
		return SourceMsgPack, nil
	case "application/protobuf", "application/x-protobuf", "application/vnd.google.protobuf":
		return SourceProto, nil
	}
	if strings.HasSuffix(mt, "+json") {
		return SourceJSON, nil
	}
	return "", &MediaTypeError{ContentType: contentType}
}

func decode(source Source, data []byte, out any, cfg *config) error {
	if msg, ok := out.(proto.Message); ok {
		switch source {
		case SourceProto:
			return proto.UnmarshalOptions{DiscardUnknown: !cfg.disallowUnknown}.Unmarshal(data, msg)
		case SourceJSON:
			return protojson.UnmarshalOptions{DiscardUnknown: !cfg.disallowUnknown}.Unmarshal(data, msg)
		}
	}

	switch source {
	case SourceJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if cfg.disallowUnknown {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(out); err != nil {
			return err
		}
		if dec.More() {
			return errors.New("unexpected data after the JSON value")
		}
		return nil

	case SourceYAML:
		var yopts []yaml.DecodeOption
		if cfg.disallowUnknown {
			yopts = append(yopts, yaml.DisallowUnknownField())
		}
		return yaml.UnmarshalWithOptions(data, out, yopts...)

	case SourceTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(out)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); cfg.disallowUnknown && len(undecoded) > 0 {
			return fmt.Errorf("unknown field %q", undecoded[0].String())
		}
		return nil

	case SourceMsgPack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		dec.DisallowUnknownFields(cfg.disallowUnknown)
		return dec.Decode(out)

	}
	return fmt.Errorf("no decoder for %s", source)
}
