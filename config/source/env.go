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

package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"crest.dev/config/codec"
)

// OSEnvVar loads variables starting with a prefix. The prefix is stripped
// and the rest is decoded by [codec.EnvVarCodec]:
//
//	CREST_SERVER_ADDR=:8080  ->  server.addr = ":8080"
type OSEnvVar struct {
	prefix  string
	environ func() []string
}

// NewOSEnvVar reads variables beginning with prefix, for example "CREST_".
func NewOSEnvVar(prefix string) *OSEnvVar {
	return &OSEnvVar{prefix: prefix, environ: os.Environ}
}

func (e *OSEnvVar) Load(context.Context) (map[string]any, error) {
	var b strings.Builder
	for _, kv := range e.environ() {
		rest, ok := strings.CutPrefix(kv, e.prefix)
		if !ok || strings.Contains(rest, "\n") {
			continue
		}
		b.WriteString(rest)
		b.WriteByte('\n')
	}

	var conf map[string]any
	if err := (codec.EnvVarCodec{}).Decode([]byte(b.String()), &conf); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return conf, nil
}
