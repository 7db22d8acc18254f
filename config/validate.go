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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator is implemented by bound structs with checks that tags cannot
// express. It runs after tag validation.
type Validator interface {
	Validate() error
}

var (
	structValidatorOnce sync.Once
	structValidator     *validator.Validate
)

func tagValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidator
}

// validateStruct checks `validate` tags and then [Validator]. Field names in
// errors use the binding tag path ("server.addr").
func (c *Config) validateStruct(v any) error {
	err := tagValidator().Struct(v)
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		var joined error
		for _, fe := range verrs {
			joined = errors.Join(joined, NewFieldError("binding", c.fieldPath(v, fe), "validate",
				fmt.Errorf("failed %q check with value %v", fe.Tag(), fe.Value())))
		}
		return joined
	case err != nil:
		return NewError("binding", "validate", err)
	}

	if val, ok := v.(Validator); ok {
		if err = val.Validate(); err != nil {
			return NewError("binding", "validate", err)
		}
	}
	return nil
}

// fieldPath maps a validator namespace ("Settings.Server.Addr") onto the
// config keys of the binding ("server.addr").
func (c *Config) fieldPath(v any, fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	t := reflect.TypeOf(v).Elem()
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		name, _, _ := strings.Cut(p, "[")
		if t.Kind() != reflect.Struct {
			keys = append(keys, strings.ToLower(name))
			continue
		}
		sf, ok := t.FieldByName(name)
		if !ok {
			keys = append(keys, strings.ToLower(p))
			continue
		}
		key, _, _ := strings.Cut(sf.Tag.Get(c.tagName), ",")
		if key == "" {
			key = strings.ToLower(sf.Name)
		}
		keys = append(keys, key)
		t = sf.Type
		for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
			t = t.Elem()
		}
	}
	return strings.Join(keys, ".")
}
