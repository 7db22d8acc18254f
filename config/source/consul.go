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
	"path"
	"strings"

	"github.com/hashicorp/consul/api"

	"crest.dev/config/codec"
)

// ConsulKV is the subset of the Consul KV API used by [Consul].
type ConsulKV interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
}

// Consul loads one key from the Consul KV store.
//
// With a structured decoder (JSON, YAML, TOML) the value is a whole
// document. With a caster decoder the value is one scalar, stored under
// the dotted path given by the key below the source's root; for example
// key "crest/server/addr" with root "crest" becomes server.addr.
//
// The client honors CONSUL_HTTP_ADDR and CONSUL_HTTP_TOKEN.
type Consul struct {
	kv      ConsulKV
	key     string
	root    string
	decoder codec.Decoder
}

// ConsulOption configures a [Consul] source.
type ConsulOption func(*Consul)

// WithConsulKV replaces the client, mostly for tests.
func WithConsulKV(kv ConsulKV) ConsulOption {
	return func(c *Consul) { c.kv = kv }
}

// WithConsulRoot sets the prefix stripped from caster keys.
func WithConsulRoot(root string) ConsulOption {
	return func(c *Consul) { c.root = strings.Trim(root, "/") }
}

// NewConsul returns a source for key decoded by decoder.
func NewConsul(key string, decoder codec.Decoder, opts ...ConsulOption) (*Consul, error) {
	c := &Consul{key: key, decoder: decoder}
	for _, opt := range opts {
		opt(c)
	}
	if c.kv == nil {
		client, err := api.NewClient(api.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("create consul client: %w", err)
		}
		c.kv = client.KV()
	}
	return c, nil
}

// Load returns an empty map when the key does not exist.
func (c *Consul) Load(ctx context.Context) (map[string]any, error) {
	pair, _, err := c.kv.Get(c.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get consul key %q: %w", c.key, err)
	}
	if pair == nil {
		return map[string]any{}, nil
	}

	if caster, ok := c.decoder.(*codec.CasterCodec); ok {
		var val any
		if err := caster.Decode(pair.Value, &val); err != nil {
			return nil, fmt.Errorf("decode consul key %q: %w", c.key, err)
		}
		return nest(c.scalarPath(pair.Key), val), nil
	}

	var conf map[string]any
	if err := c.decoder.Decode(pair.Value, &conf); err != nil {
		return nil, fmt.Errorf("decode consul key %q: %w", c.key, err)
	}
	return conf, nil
}

func (c *Consul) scalarPath(key string) []string {
	key = strings.Trim(key, "/")
	if c.root != "" {
		if rest, ok := strings.CutPrefix(key, c.root+"/"); ok {
			key = rest
		}
	} else {
		key = path.Base(key)
	}
	return strings.Split(key, "/")
}

func nest(parts []string, val any) map[string]any {
	out := map[string]any{}
	cur := out
	for _, p := range parts[:len(parts)-1] {
		next := map[string]any{}
		cur[p] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = val
	return out
}
