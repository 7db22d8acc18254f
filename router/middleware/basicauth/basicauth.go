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

// Package basicauth provides HTTP Basic Authentication middleware.
package basicauth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"crest.dev/router"
	"crest.dev/router/middleware"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "basicauth"

// User is the exposed per-request slice.
type User struct {
	Name string
}

// New returns a Basic Authentication middleware.
//
// Requests without valid credentials are answered by the unauthorized
// handler (401 with a JSON body by default) and the pipeline stops.
// Passwords are compared in constant time.
//
// Typically declared and attached to the rules that need it:
//
//	auth := basicauth.New(basicauth.WithUsers(map[string]string{"admin": "secret"}))
//	if err := r.Declare(auth); err != nil {
//	    log.Fatal(err)
//	}
//	r.GET("/admin", admin, router.WithMiddleware(basicauth.Name))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	challenge := `Basic realm="` + cfg.realm + `"`

	return router.NewMiddleware(Name, router.Hooks[User]{
		Before: func(req *router.Request, res *router.Response, u *User) router.Flow {
			if cfg.skipPaths[req.Path] {
				return router.Continue
			}

			username, ok := cfg.authenticate(req.Header.Get("Authorization"))
			if !ok {
				res.Header().Set("WWW-Authenticate", challenge)
				cfg.unauthorizedHandler(req, res)
				return router.Stop
			}

			u.Name = username
			req.WithContext(context.WithValue(req.Context(), middleware.AuthUsernameKey, username))
			return router.Continue
		},
	}, router.Expose())
}

// authenticate parses an Authorization header and checks the credentials.
func (cfg *config) authenticate(header string) (string, bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", false
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", false
	}

	if cfg.validator != nil {
		return username, cfg.validator(username, password)
	}
	expected, exists := cfg.users[username]
	if !exists {
		return "", false
	}
	return username, subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

func defaultUnauthorizedHandler(_ *router.Request, res *router.Response) {
	_ = res.JSON(http.StatusUnauthorized, map[string]string{
		"error": "Unauthorized",
		"code":  "UNAUTHORIZED",
	})
}

// Username returns the authenticated username for req, or "".
func Username(req *router.Request) string {
	name, _ := req.Context().Value(middleware.AuthUsernameKey).(string)
	return name
}
