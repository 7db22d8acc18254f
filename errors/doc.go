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

// Package errors turns failed requests into HTTP error responses.
//
// A [Formatter] maps an error to a status, content type and body. Three are
// provided: [RFC9457] (Problem Details), [Simple] ({"error": ...}) and
// [JSONAPI]. Errors choose their status by implementing [ErrorType] or by
// being wrapped with [WithStatus]; [ErrorCode] and [ErrorDetails] add a
// machine readable code and structured details.
//
// [Handler] plugs a formatter into a router:
//
//	r := router.MustNew(router.WithErrorHandler(
//	    errors.Handler(errors.NewRFC9457("https://api.example.com/problems"), logger),
//	))
//
// Internal server errors (a 5xx that did not choose its status, panics
// included) are answered without their message unless the formatter's
// ExposeInternal is set.
package errors
