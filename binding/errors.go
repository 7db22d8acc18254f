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
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// Source identifies where a value was bound from.
type Source string

const (
	SourceQuery   Source = "query"
	SourceJSON    Source = "json"
	SourceYAML    Source = "yaml"
	SourceTOML    Source = "toml"
	SourceMsgPack Source = "msgpack"
	SourceProto   Source = "proto"
)

var (
	ErrOutMustBePointer = errors.New("binding: out must be a non-nil pointer")
	ErrUnsupportedType  = errors.New("binding: unsupported field type")
	ErrNotProtoMessage  = errors.New("binding: protobuf body needs a proto.Message target")
)

// MediaTypeError reports a body whose Content-Type has no decoder.
type MediaTypeError struct {
	ContentType string
}

func (e *MediaTypeError) Error() string {
	return fmt.Sprintf("binding: unsupported content type %q", e.ContentType)
}

func (e *MediaTypeError) HTTPStatus() int { return http.StatusUnsupportedMediaType }
func (e *MediaTypeError) Code() string    { return "unsupported_media_type" }

// DecodeError reports a body that does not parse as its declared format.
type DecodeError struct {
	Source Source
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("binding: malformed %s body: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error   { return e.Err }
func (e *DecodeError) HTTPStatus() int { return http.StatusBadRequest }
func (e *DecodeError) Code() string    { return "malformed_body" }

// BindError reports a value that could not be converted to its field type.
//
//	var bindErr *binding.BindError
//	if errors.As(err, &bindErr) {
//	    log.Println(bindErr.Field, bindErr.Source)
//	}
type BindError struct {
	Field  string
	Source Source
	Value  string
	Type   reflect.Type
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding field %q (%s): cannot convert %q to %s: %v",
		e.Field, e.Source, e.Value, e.Type, e.Err)
}

func (e *BindError) Unwrap() error   { return e.Err }
func (e *BindError) HTTPStatus() int { return http.StatusBadRequest }
func (e *BindError) Code() string    { return "binding_error" }

// Details names the offending parameter for problem responses.
func (e *BindError) Details() any {
	return map[string]string{"field": e.Field, "source": string(e.Source)}
}
