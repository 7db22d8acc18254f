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

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Get returns the raw value at key. Keys are case-insensitive and use dots
// for nesting ("server.addr").
func (c *Config) Get(key string) any {
	if c == nil || key == "" {
		return nil
	}
	return c.lookup(key)
}

// String returns the value at key as a string, or "".
func (c *Config) String(key string) string { return cast.ToString(c.Get(key)) }

// Int returns the value at key as an int, or 0.
func (c *Config) Int(key string) int { return cast.ToInt(c.Get(key)) }

// Bool returns the value at key as a bool, or false.
func (c *Config) Bool(key string) bool { return cast.ToBool(c.Get(key)) }

// Duration returns the value at key as a duration, or 0.
func (c *Config) Duration(key string) time.Duration { return cast.ToDuration(c.Get(key)) }

// StringSlice returns the value at key as a string slice. A comma separated
// string is split.
func (c *Config) StringSlice(key string) []string {
	if s, ok := c.Get(key).(string); ok {
		return splitList(s)
	}
	return cast.ToStringSlice(c.Get(key))
}

// Get returns the value at key converted to T, or the zero value.
//
//	port := config.Get[int](cfg, "server.port")
func Get[T any](c *Config, key string) T {
	v, _ := GetE[T](c, key)
	return v
}

// GetOr returns the value at key converted to T, or def when the key is
// missing or cannot be converted.
func GetOr[T any](c *Config, key string, def T) T {
	v, err := GetE[T](c, key)
	if err != nil {
		return def
	}
	return v
}

// GetE returns the value at key converted to T.
func GetE[T any](c *Config, key string) (T, error) {
	var zero T
	if c == nil {
		return zero, fmt.Errorf("config is nil")
	}
	val := c.Get(key)
	if val == nil {
		return zero, fmt.Errorf("key %q not found", key)
	}
	if v, ok := val.(T); ok {
		return v, nil
	}
	if v, ok := convert[T](val); ok {
		return v, nil
	}
	return zero, fmt.Errorf("cannot convert value at key %q to %T", key, zero)
}

func convert[T any](val any) (T, bool) {
	var zero T
	var (
		out any
		err error
	)
	switch any(zero).(type) {
	case string:
		out, err = cast.ToStringE(val)
	case int:
		out, err = cast.ToIntE(val)
	case int64:
		out, err = cast.ToInt64E(val)
	case uint:
		out, err = cast.ToUintE(val)
	case float64:
		out, err = cast.ToFloat64E(val)
	case bool:
		out, err = cast.ToBoolE(val)
	case time.Duration:
		out, err = cast.ToDurationE(val)
	case []string:
		if s, ok := val.(string); ok {
			out = splitList(s)
		} else {
			out, err = cast.ToStringSliceE(val)
		}
	case []int:
		out, err = cast.ToIntSliceE(val)
	case map[string]any:
		out, err = cast.ToStringMapE(val)
	case map[string]string:
		out, err = cast.ToStringMapStringE(val)
	default:
		return zero, false
	}
	if err != nil {
		return zero, false
	}
	v, ok := out.(T)
	return v, ok
}
