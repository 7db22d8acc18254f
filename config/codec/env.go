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

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// TypeEnvVar decodes KEY=VALUE lines into a nested map.
const TypeEnvVar Type = "env_var"

func init() {
	RegisterDecoder(TypeEnvVar, EnvVarCodec{})
}

// EnvVarCodec decodes environment style lines. Keys are lowercased and
// split into a path: on "__" when the key contains one, otherwise on "_".
//
//	SERVER_ADDR=:8080               -> server.addr
//	SERVER__SHUTDOWN_TIMEOUT=10s    -> server.shutdown_timeout
//
// Values are kept as strings; binding casts them.
type EnvVarCodec struct{}

func (EnvVarCodec) Decode(data []byte, v any) error {
	ptr, ok := v.(*map[string]any)
	if !ok {
		return fmt.Errorf("codec: env decode target must be *map[string]any, got %T", v)
	}

	conf := make(map[string]any)
	for line := range bytes.Lines(data) {
		key, value, ok := strings.Cut(strings.TrimRight(string(line), "\r\n"), "=")
		if !ok {
			continue
		}
		parts := envPath(strings.TrimSpace(key))
		if len(parts) == 0 {
			continue
		}

		cur := conf
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				// A scalar at a shorter path is replaced by the nested value.
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		leaf := parts[len(parts)-1]
		if _, isMap := cur[leaf].(map[string]any); isMap {
			return errors.New("codec: env key " + key + " conflicts with a nested key")
		}
		cur[leaf] = strings.TrimSpace(value)
	}

	*ptr = conf
	return nil
}

func envPath(key string) []string {
	sep := "_"
	if strings.Contains(key, "__") {
		sep = "__"
	}
	var parts []string
	for p := range strings.SplitSeq(strings.ToLower(key), sep) {
		if p = strings.Trim(p, "_"); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
