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

// Command crest runs and inspects a crest server.
//
//	crest serve -c crest.yaml
//	crest routes
//	crest config validate -c crest.yaml --dump yaml
//	crest version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crest.dev/config"
	"crest.dev/config/codec"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type rootFlags struct {
	files     []string
	envPrefix string
	consulKey string
}

// sources returns the configuration sources in precedence order: files,
// then Consul, then the environment.
func (f *rootFlags) sources() []config.Option {
	opts := make([]config.Option, 0, len(f.files)+2)
	for _, file := range f.files {
		opts = append(opts, config.WithFile(file))
	}
	if f.consulKey != "" {
		opts = append(opts, config.WithConsulAs(f.consulKey, codec.TypeYAML))
	}
	if f.envPrefix != "" {
		opts = append(opts, config.WithEnv(f.envPrefix))
	}
	return opts
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "crest",
		Short: "Typed-parameter HTTP routing server",
		Long: `crest serves HTTP APIs whose routes are declared as typed templates
such as /orders/<int>/items/<string>.

Settings are read from configuration files, Consul KV and CREST_*
environment variables, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVarP(&flags.files, "config", "c", nil, "configuration file (yaml, toml or json); repeatable")
	root.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", config.EnvPrefix, "environment variable prefix; empty disables")
	root.PersistentFlags().StringVar(&flags.consulKey, "consul-key", "", "Consul KV key holding a YAML settings document (needs CONSUL_HTTP_ADDR)")

	root.AddCommand(
		serveCmd(flags),
		routesCmd(flags),
		lambdaCmd(flags),
		configCmd(flags),
		versionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
