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

package errors

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"crest.dev/router"
)

// JSONAPI formats errors as a JSON:API error document
// (application/vnd.api+json). See https://jsonapi.org/format/#errors.
type JSONAPI struct {
	// StatusResolver overrides [StatusOf].
	StatusResolver func(err error) int

	// ExposeInternal includes the message of internal 5xx errors.
	ExposeInternal bool
}

// NewJSONAPI returns a [JSONAPI] formatter.
func NewJSONAPI() *JSONAPI {
	return &JSONAPI{}
}

type jsonAPIError struct {
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status,omitempty"`
	Code   string         `json:"code,omitempty"`
	Title  string         `json:"title,omitempty"`
	Detail string         `json:"detail,omitempty"`
	Source *jsonAPISource `json:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type jsonAPISource struct {
	Pointer string `json:"pointer,omitempty"`
}

type jsonAPIDocument struct {
	Errors []jsonAPIError `json:"errors"`
}

func (f *JSONAPI) Format(_ *router.Request, err error) Response {
	status := StatusOf(err)
	if f.StatusResolver != nil {
		status = f.StatusResolver(err)
	}

	base := jsonAPIError{
		Status: strconv.Itoa(status),
		Title:  http.StatusText(status),
		Detail: detail(err, status, f.ExposeInternal),
	}
	var coded ErrorCode
	if errors.As(err, &coded) {
		base.Code = coded.Code()
	}

	var docs []jsonAPIError
	var detailed ErrorDetails
	if errors.As(err, &detailed) {
		switch d := detailed.Details().(type) {
		case []FieldError:
			// One error object per field.
			for _, fe := range d {
				e := base
				e.ID = newErrorID()
				if fe.Code != "" {
					e.Code = fe.Code
				}
				if fe.Message != "" {
					e.Detail = fe.Message
				}
				if fe.Path != "" {
					e.Source = &jsonAPISource{Pointer: pathToPointer(fe.Path)}
				}
				docs = append(docs, e)
			}
		default:
			e := base
			e.ID = newErrorID()
			e.Meta = map[string]any{"details": d}
			docs = append(docs, e)
		}
	}
	if len(docs) == 0 {
		base.ID = newErrorID()
		docs = []jsonAPIError{base}
	}

	return Response{
		Status:      status,
		ContentType: "application/vnd.api+json",
		Body:        jsonAPIDocument{Errors: docs},
	}
}

// pathToPointer maps "items.0.price" to "/data/attributes/items/0/price".
func pathToPointer(path string) string {
	return "/data/attributes/" + strings.ReplaceAll(path, ".", "/")
}
