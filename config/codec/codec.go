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

// Package codec converts configuration payloads to and from Go values.
//
// Codecs register themselves by [Type] at init time; the config package
// looks them up by file extension or by the type given to an option.
package codec

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Type names a codec.
type Type string

// Encoder turns a value into bytes. Implementations must be safe for
// concurrent use.
type Encoder interface {
	Encode(v any) ([]byte, error)
}

// Decoder fills v from data. Implementations must be safe for concurrent use.
type Decoder interface {
	Decode(data []byte, v any) error
}

var registry = struct {
	sync.RWMutex
	encoders map[Type]Encoder
	decoders map[Type]Decoder
}{
	encoders: map[Type]Encoder{},
	decoders: map[Type]Decoder{},
}

// RegisterEncoder makes e available under name, replacing any previous one.
func RegisterEncoder(name Type, e Encoder) {
	registry.Lock()
	defer registry.Unlock()
	registry.encoders[name] = e
}

// RegisterDecoder makes d available under name, replacing any previous one.
func RegisterDecoder(name Type, d Decoder) {
	registry.Lock()
	defer registry.Unlock()
	registry.decoders[name] = d
}

// GetEncoder returns the encoder registered under name.
func GetEncoder(name Type) (Encoder, error) {
	registry.RLock()
	defer registry.RUnlock()
	e, ok := registry.encoders[name]
	if !ok {
		return nil, fmt.Errorf("codec: no encoder for type %q", name)
	}
	return e, nil
}

// GetDecoder returns the decoder registered under name.
func GetDecoder(name Type) (Decoder, error) {
	registry.RLock()
	defer registry.RUnlock()
	d, ok := registry.decoders[name]
	if !ok {
		return nil, fmt.Errorf("codec: no decoder for type %q", name)
	}
	return d, nil
}

// Decoders lists the registered decoder types in sorted order.
func Decoders() []Type {
	registry.RLock()
	defer registry.RUnlock()
	return slices.Sorted(maps.Keys(registry.decoders))
}
