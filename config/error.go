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

import "fmt"

// Error reports where loading failed. Source names the stage ("source[0]",
// "json-schema", "binding"); Field is set for field level failures.
type Error struct {
	Source string
	Field  string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s.%s: %s: %v", e.Source, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("config: %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError returns an [Error] without a field.
func NewError(source, op string, err error) *Error {
	return &Error{Source: source, Op: op, Err: err}
}

// NewFieldError returns an [Error] for one field.
func NewFieldError(source, field, op string, err error) *Error {
	return &Error{Source: source, Field: field, Op: op, Err: err}
}
