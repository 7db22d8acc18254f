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

// Package config loads layered configuration.
//
// Sources are read in the order they are given and merged, later sources
// overriding earlier ones key by key. Keys are case-insensitive. The merged
// map can be checked against a JSON Schema and custom validators, then bound
// to a struct through `config` tags:
//
//	var s MySettings
//	c := config.MustNew(
//	    config.WithFile("app.yaml"),
//	    config.WithEnv("APP_"),
//	    config.WithBinding(&s),
//	)
//	if err := c.Load(ctx); err != nil {
//	    return err
//	}
//
// Struct fields may declare `default:"..."` values, which act as the lowest
// layer, and go-playground/validator `validate:"..."` rules. A bound struct
// implementing [Validator] is checked last.
//
// [Settings] is the server configuration used by the crest app and CLI;
// [LoadSettings] loads it with the embedded schema.
package config
