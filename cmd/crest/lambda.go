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
	"os"

	"github.com/spf13/cobra"

	"crest.dev/config"
	"crest.dev/lambda"
)

func lambdaCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve the demo orders API as an AWS Lambda function",
		Long: `Serve the demo orders API behind an API Gateway HTTP API. The
command must run inside the Lambda runtime; it never returns.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadSettings(cmd.Context(), flags.sources()...)
			if err != nil {
				return err
			}
			a, err := newDemoApp(settings, os.Getenv("CREST_ADMIN_PASSWORD"))
			if err != nil {
				return err
			}
			a.Logger().Info("lambda handler starting", "rules", len(a.Router().Rules()))
			lambda.Start(a.Router())
			return nil
		},
	}
}
