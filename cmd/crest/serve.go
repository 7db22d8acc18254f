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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crest.dev/app"
	"crest.dev/config"
	"crest.dev/logging"
	"crest.dev/router/middleware/trailingslash"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var (
		addr          string
		adminPassword string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo orders API",
		Long: `Serve the demo orders API with the configured middleware, metrics
and tracing. SIGHUP reloads the log level from the configuration sources.
SIGINT and SIGTERM shut the server down gracefully.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			settings, err := config.LoadSettings(ctx, flags.sources()...)
			if err != nil {
				return err
			}
			if addr != "" {
				settings.Server.Addr = addr
			}
			if adminPassword == "" {
				adminPassword = os.Getenv("CREST_ADMIN_PASSWORD")
			}

			a, err := newDemoApp(settings, adminPassword)
			if err != nil {
				return err
			}
			a.OnReload(func(ctx context.Context) error {
				fresh, err := config.LoadSettings(ctx, flags.sources()...)
				if err != nil {
					return err
				}
				level, err := logging.ParseLevel(fresh.Logging.Level)
				if err != nil {
					return err
				}
				if err := a.Logging().SetLevel(level); err != nil {
					return err
				}
				a.Logger().Info("log level reloaded", "level", level)
				return nil
			})
			return a.Start(ctx)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address; overrides server.addr")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "enable /admin with basic auth for user admin (or CREST_ADMIN_PASSWORD)")
	return cmd
}

// newDemoApp builds the app with health probes and the demo routes.
func newDemoApp(settings *config.Settings, adminPassword string, opts ...app.Option) (*app.App, error) {
	store := newOrderStore()
	a, err := app.New(append([]app.Option{
		app.WithSettings(settings),
		app.WithTrailingSlash(trailingslash.PolicyRemove),
		app.WithHealthEndpoints(app.WithReadinessCheck("store", store.ping)),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := registerDemo(a, store, adminPassword); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}
	return a, nil
}
