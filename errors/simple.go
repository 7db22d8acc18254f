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

	"crest.dev/router"
)

// Simple formats errors as {"error": ..., "code": ..., "details": ...}.
type Simple struct {
	// StatusResolver overrides [StatusOf].
	StatusResolver func(err error) int

	// ExposeInternal includes the message of internal 5xx errors.
	ExposeInternal bool
}

// NewSimple returns a [Simple] formatter.
func NewSimple() *Simple {
	return &Simple{}
}

func (f *Simple) Format(_ *router.Request, err error) Response {
	status := StatusOf(err)
	if f.StatusResolver != nil {
		status = f.StatusResolver(err)
	}

	msg := detail(err, status, f.ExposeInternal)
	if msg == "" {
		msg = http.StatusText(status)
	}
	body := map[string]any{"error": msg}

	var detailed ErrorDetails
	if errors.As(err, &detailed) {
		body["details"] = detailed.Details()
	}
	var coded ErrorCode
	if errors.As(err, &coded) {
		body["code"] = coded.Code()
	}

	return Response{
		Status:      status,
		ContentType: "application/json; charset=utf-8",
		Body:        body,
	}
}
