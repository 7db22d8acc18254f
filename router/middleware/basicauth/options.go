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

package basicauth

import "crest.dev/router"

// Option configures the basic auth middleware.
type Option func(*config)

type config struct {
	users               map[string]string
	realm               string
	validator           func(username, password string) bool
	unauthorizedHandler func(req *router.Request, res *router.Response)
	skipPaths           map[string]bool
}

func defaultConfig() *config {
	return &config{
		users:               make(map[string]string),
		realm:               "Restricted",
		unauthorizedHandler: defaultUnauthorizedHandler,
		skipPaths:           make(map[string]bool),
	}
}

// WithUsers sets the accepted username and password pairs.
func WithUsers(users map[string]string) Option {
	return func(cfg *config) {
		for user, pass := range users {
			cfg.users[user] = pass
		}
	}
}

// WithRealm sets the realm sent in the WWW-Authenticate challenge.
// Default: "Restricted"
func WithRealm(realm string) Option {
	return func(cfg *config) {
		cfg.realm = realm
	}
}

// WithValidator replaces the user map with a custom check, for instance
// against a database. The validator should compare in constant time.
func WithValidator(fn func(username, password string) bool) Option {
	return func(cfg *config) {
		cfg.validator = fn
	}
}

// WithUnauthorizedHandler replaces the 401 response.
func WithUnauthorizedHandler(fn func(req *router.Request, res *router.Response)) Option {
	return func(cfg *config) {
		cfg.unauthorizedHandler = fn
	}
}

// WithSkipPaths disables authentication for exact paths.
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.skipPaths[p] = true
		}
	}
}
