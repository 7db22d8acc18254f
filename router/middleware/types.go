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

package middleware

import "context"

// ContextKey is a type for context keys to avoid collisions with other packages.
type ContextKey string

// Context keys shared by middleware packages. Each value is also available
// as the owning middleware's context slice; the context copy exists for
// code that only sees a context.Context, such as slog handlers.
const (
	// RequestIDKey holds the request id. Set by requestid, read by accesslog
	// and the logging package.
	RequestIDKey ContextKey = "middleware.request_id"

	// AuthUsernameKey holds the authenticated username. Set by basicauth.
	AuthUsernameKey ContextKey = "middleware.auth_username"
)

// RequestID returns the request id stored in ctx by the requestid
// middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
