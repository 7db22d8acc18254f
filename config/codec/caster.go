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
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Caster codec types decode a single scalar, such as one Consul key.
const (
	TypeCasterString   Type = "caster-string"
	TypeCasterBool     Type = "caster-bool"
	TypeCasterInt      Type = "caster-int"
	TypeCasterInt64    Type = "caster-int64"
	TypeCasterFloat64  Type = "caster-float64"
	TypeCasterDuration Type = "caster-duration"
	TypeCasterStrings  Type = "caster-strings"
)

func init() {
	for _, t := range []Type{
		TypeCasterString, TypeCasterBool, TypeCasterInt, TypeCasterInt64,
		TypeCasterFloat64, TypeCasterDuration, TypeCasterStrings,
	} {
		RegisterDecoder(t, &CasterCodec{typ: t})
	}
}

// CasterCodec casts a raw value with spf13/cast. Decode targets *any.
type CasterCodec struct {
	typ Type
}

// NewCaster returns the caster for t.
func NewCaster(t Type) *CasterCodec {
	return &CasterCodec{typ: t}
}

func (c *CasterCodec) Decode(data []byte, v any) error {
	out, ok := v.(*any)
	if !ok {
		return fmt.Errorf("codec: caster decode target must be *any, got %T", v)
	}
	raw := strings.TrimSpace(string(data))

	var err error
	switch c.typ {
	case TypeCasterString:
		*out = raw
	case TypeCasterBool:
		*out, err = cast.ToBoolE(raw)
	case TypeCasterInt:
		*out, err = cast.ToIntE(raw)
	case TypeCasterInt64:
		*out, err = cast.ToInt64E(raw)
	case TypeCasterFloat64:
		*out, err = cast.ToFloat64E(raw)
	case TypeCasterDuration:
		*out, err = cast.ToDurationE(raw)
	case TypeCasterStrings:
		var parts []string
		for p := range strings.SplitSeq(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		*out = parts
	default:
		err = fmt.Errorf("codec: unknown caster %q", c.typ)
	}
	return err
}
