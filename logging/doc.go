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

// Package logging builds the structured loggers used across Crest.
//
// A [Logger] wraps a [*slog.Logger] with one of three handlers: JSON for
// production, text (logfmt) and a colored console format for development.
// Service name, version and environment are attached to every record, and
// the values of sensitive keys (password, token, secret, api_key,
// authorization) are replaced with ***REDACTED***.
//
//	logger := logging.MustNew(
//	    logging.WithConsoleHandler(),
//	    logging.WithDebugLevel(),
//	    logging.WithServiceName("orders"),
//	)
//	r := router.MustNew(router.WithLogger(logger.Logger()))
//
// Inside handlers, [NewContextLogger] adds the trace_id and span_id of the
// active OpenTelemetry span and the request id to each record.
package logging
