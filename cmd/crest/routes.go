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

package main

import (
	"io"

	"github.com/spf13/cobra"

	"crest.dev/app"
	"crest.dev/config"
)

func routesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the rule table of the demo API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadSettings(cmd.Context(), flags.sources()...)
			if err != nil {
				return err
			}
			// Any admin password lists the admin rules as well.
			a, err := newDemoApp(settings, "routes", app.WithLogOutput(io.Discard))
			if err != nil {
				return err
			}
			a.PrintRoutes(cmd.OutOrStdout())
			return nil
		},
	}
}
