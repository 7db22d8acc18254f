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

//go:build !integration

package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{TypeJSON, TypeYAML, TypeTOML, TypeEnvVar, TypeCasterInt} {
		_, err := GetDecoder(typ)
		require.NoError(t, err, typ)
	}
	for _, typ := range []Type{TypeJSON, TypeYAML, TypeTOML} {
		_, err := GetEncoder(typ)
		require.NoError(t, err, typ)
	}

	_, err := GetDecoder("xml")
	require.Error(t, err)
	_, err = GetEncoder(TypeEnvVar)
	require.Error(t, err)

	assert.Contains(t, Decoders(), TypeYAML)
}

func TestStructuredDecoders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		typ  Type
		data string
	}{
		{name: "json", typ: TypeJSON, data: `{"server":{"addr":":8080","h2c":true}}`},
		{name: "yaml", typ: TypeYAML, data: "server:\n  addr: \":8080\"\n  h2c: true\n"},
		{name: "toml", typ: TypeTOML, data: "[server]\naddr = \":8080\"\nh2c = true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := GetDecoder(tt.typ)
			require.NoError(t, err)

			var m map[string]any
			require.NoError(t, d.Decode([]byte(tt.data), &m))
			server, ok := m["server"].(map[string]any)
			require.True(t, ok, "server section is %T", m["server"])
			assert.Equal(t, ":8080", server["addr"])
			assert.Equal(t, true, server["h2c"])
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	in := map[string]any{"logging": map[string]any{"level": "debug"}}
	for _, typ := range []Type{TypeJSON, TypeYAML, TypeTOML} {
		e, err := GetEncoder(typ)
		require.NoError(t, err)
		data, err := e.Encode(in)
		require.NoError(t, err)
		assert.Contains(t, string(data), "debug", typ)
	}
}

func TestEnvVarCodec(t *testing.T) {
	t.Parallel()

	data := []byte("SERVER_ADDR=:9000\n" +
		"SERVER__SHUTDOWN_TIMEOUT= 15s \n" +
		"LOGGING_LEVEL=debug\r\n" +
		"BROKEN\n" +
		"=novalue\n" +
		"MIDDLEWARE__CORS__ALLOW_ORIGINS=https://a.example,https://b.example\n")

	var m map[string]any
	require.NoError(t, EnvVarCodec{}.Decode(data, &m))

	assert.Equal(t, map[string]any{
		"server": map[string]any{
			"addr":             ":9000",
			"shutdown_timeout": "15s",
		},
		"logging": map[string]any{"level": "debug"},
		"middleware": map[string]any{
			"cors": map[string]any{"allow_origins": "https://a.example,https://b.example"},
		},
	}, m)
}

func TestEnvVarCodec_Errors(t *testing.T) {
	t.Parallel()

	var s string
	require.Error(t, EnvVarCodec{}.Decode([]byte("A=1"), &s))

	var m map[string]any
	require.Error(t, EnvVarCodec{}.Decode([]byte("A_B=1\nA=2"), &m))
}

func TestCasterCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ     Type
		in      string
		want    any
		wantErr bool
	}{
		{typ: TypeCasterString, in: " :8080 ", want: ":8080"},
		{typ: TypeCasterBool, in: "true", want: true},
		{typ: TypeCasterInt, in: "42", want: 42},
		{typ: TypeCasterInt64, in: "42", want: int64(42)},
		{typ: TypeCasterFloat64, in: "2.5", want: 2.5},
		{typ: TypeCasterDuration, in: "1m30s", want: 90 * time.Second},
		{typ: TypeCasterStrings, in: "a, b,,c", want: []string{"a", "b", "c"}},
		{typ: TypeCasterInt, in: "forty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.in, func(t *testing.T) {
			t.Parallel()
			var out any
			err := NewCaster(tt.typ).Decode([]byte(tt.in), &out)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
