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
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"crest.dev/router"
)

// Formatter turns a failed request into response components.
type Formatter interface {
	Format(req *router.Request, err error) Response
}

// Response is a formatted error reply. Body is marshaled as JSON.
type Response struct {
	Status      int
	ContentType string
	Body        any

	// Headers are added to the reply. Optional.
	Headers http.Header
}

// ErrorType is implemented by errors that choose their own HTTP status.
//
//	type NotFound struct{ ID int64 }
//
//	func (e NotFound) Error() string   { return fmt.Sprintf("order %d not found", e.ID) }
//	func (e NotFound) HTTPStatus() int { return http.StatusNotFound }
type ErrorType interface {
	error
	HTTPStatus() int
}

// ErrorDetails is implemented by errors carrying structured details, such
// as per-field validation failures.
type ErrorDetails interface {
	error
	Details() any
}

// ErrorCode is implemented by errors with a machine readable code.
type ErrorCode interface {
	error
	Code() string
}

// WithStatus wraps err with an explicit HTTP status. A nil err uses the
// status text as its message.
//
//	return errors.WithStatus(err, http.StatusConflict)
func WithStatus(err error, status int) error {
	return &statusError{err: err, status: status}
}

type statusError struct {
	err    error
	status int
}

func (e *statusError) Error() string {
	if e.err == nil {
		return http.StatusText(e.status)
	}
	return e.err.Error()
}

func (e *statusError) Unwrap() error   { return e.err }
func (e *statusError) HTTPStatus() int { return e.status }

// StatusOf returns the HTTP status for err: the status declared through
// [ErrorType], 503 for a canceled request, 504 for an expired deadline and
// 500 otherwise.
func StatusOf(err error) int {
	var typed ErrorType
	switch {
	case errors.As(err, &typed):
		return typed.HTTPStatus()
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// detail returns the client visible message. Server errors that did not
// choose their own status are internal and are not exposed unless asked.
func detail(err error, status int, expose bool) string {
	if status < http.StatusInternalServerError || expose {
		return err.Error()
	}
	var typed ErrorType
	if errors.As(err, &typed) {
		return err.Error()
	}
	return ""
}

func newErrorID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Handler adapts f to a [router.ErrorHandler]. Server errors are logged on
// logger; a nil logger disables logging.
//
//	r := router.MustNew(router.WithErrorHandler(
//	    errors.Handler(errors.NewRFC9457("https://api.example.com/problems"), logger),
//	))
func Handler(f Formatter, logger *slog.Logger) router.ErrorHandler {
	return func(req *router.Request, res *router.Response, err error) {
		out := f.Format(req, err)
		if logger != nil && out.Status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
			logFailure(logger, req, err, out.Status)
		}

		body, mErr := json.Marshal(out.Body)
		res.Header().Del("Content-Encoding")
		if mErr != nil {
			res.Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		for k, vs := range out.Headers {
			for _, v := range vs {
				res.Header().Add(k, v)
			}
		}
		res.Header().Set("Content-Type", out.ContentType)
		res.SetStatus(out.Status)
		res.SetBody(body)
	}
}

func logFailure(logger *slog.Logger, req *router.Request, err error, status int) {
	attrs := []any{
		"method", req.RawMethod,
		"path", req.Path,
		"status", status,
	}
	var pe *router.PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, "panic", pe.Value, "stack", string(pe.Stack))
		logger.ErrorContext(req.Context(), "handler panic", attrs...)
		return
	}
	attrs = append(attrs, "error", err)
	logger.ErrorContext(req.Context(), "request failed", attrs...)
}
