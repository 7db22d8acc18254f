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

package router

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRoute indicates that an identical template is already registered
	// for an overlapping method set.
	ErrDuplicateRoute = errors.New("duplicate route")

	// ErrHandlerSignatureMismatch indicates that a handler's declared parameters do not
	// match the parameter tags derived from its template.
	ErrHandlerSignatureMismatch = errors.New("handler signature mismatch")

	// ErrMalformedTemplate indicates that a path template cannot be parsed.
	ErrMalformedTemplate = errors.New("malformed template")

	// ErrUnknownMiddleware indicates that a rule references a middleware name that was never declared.
	ErrUnknownMiddleware = errors.New("unknown middleware")

	// ErrDuplicateMiddleware indicates that a middleware name was declared twice.
	ErrDuplicateMiddleware = errors.New("duplicate middleware")

	// ErrInvalidMethodSet indicates that a rule was registered without a usable method.
	ErrInvalidMethodSet = errors.New("invalid method set")

	// ErrNilHandler indicates that a rule was registered with a nil handler.
	ErrNilHandler = errors.New("nil handler")

	// ErrRuleNameTaken indicates that another rule already uses the requested name.
	ErrRuleNameTaken = errors.New("rule name already in use")

	// ErrRuleArgs indicates that URL construction received the wrong arguments for a template.
	ErrRuleArgs = errors.New("rule arguments do not match template")

	// ErrServerTimeoutInvalid indicates that the server timeout value must be positive.
	ErrServerTimeoutInvalid = errors.New("server timeout must be positive")

	// ErrInvalidProxy indicates a trusted proxy range that does not parse.
	ErrInvalidProxy = errors.New("invalid trusted proxy")

	// ErrNotUpgradable indicates that the transport cannot perform a protocol upgrade.
	ErrNotUpgradable = errors.New("response cannot be upgraded")
)

// PanicError carries a value recovered from a panicking handler or middleware,
// together with the stack captured at the point of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
