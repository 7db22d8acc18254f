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


// Package binding fills Go values from router requests.
//
// [Body] decodes the request body according to its Content-Type:
//
//	application/json, */*+json         encoding/json (protojson for proto messages)
//	application/yaml, text/yaml        github.com/goccy/go-yaml
//	application/toml                   github.com/BurntSushi/toml
//	application/msgpack                github.com/vmihailenco/msgpack/v5
//	application/protobuf               google.golang.org/protobuf
//
// A missing Content-Type is treated as JSON. [Query] binds URL query values
// into struct fields tagged `query:"name"`, with optional `default:"..."`
// values. [Bind] does both.
//
// Failures carry an HTTP status, so the errors package renders them as
// 400 or 415 responses without extra mapping:
//
//	var in createOrder
//	if err := binding.Body(req, &in, binding.WithValidator(v)); err != nil {
//	    return err
//	}
package binding
