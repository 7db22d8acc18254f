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
	"fmt"

	"github.com/spf13/cobra"

	"crest.dev/config"
	"crest.dev/config/codec"
)

func configCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(configValidateCmd(flags))
	return cmd
}

func configValidateCmd(flags *rootFlags) *cobra.Command {
	var dump string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration sources",
		Long: `Load every configuration source, validate the merged document against
the settings schema and the bound settings against their constraints.

--dump prints the merged values of the sources (defaults excluded).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := config.LoadSettings(ctx, flags.sources()...); err != nil {
				return err
			}
			if dump != "" {
				c, err := config.New(append([]config.Option{config.WithJSONSchema(config.SettingsSchema())}, flags.sources()...)...)
				if err != nil {
					return err
				}
				if err := c.Load(ctx); err != nil {
					return err
				}
				if err := c.Dump(cmd.OutOrStdout(), codec.Type(dump)); err != nil {
					return err
				}
				return nil
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return err
		},
	}
	cmd.Flags().StringVar(&dump, "dump", "", "print the merged values as json, yaml or toml")
	return cmd
}
