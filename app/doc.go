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

// Package app assembles a production server from [config.Settings].
//
// New builds the logger, the router with its error formatter, the global
// middleware stack selected by the middleware settings, and the metrics and
// tracing recorders. Routes and blueprints are registered on
// [App.Router]; [App.Start] then serves until its context is canceled.
//
//	settings, err := config.LoadSettings(ctx,
//	    config.WithFile("crest.yaml"),
//	    config.WithEnv(config.EnvPrefix),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	a := app.MustNew(
//	    app.WithSettings(settings),
//	    app.WithHealthEndpoints(app.WithReadinessCheck("db", db.PingContext)),
//	)
//	a.Router().GET("/orders/<int>", router.Handle1(getOrder))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer cancel()
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Handler failures are rendered by the formatter named in the error
// settings (RFC 9457 problem details by default). Recovered panics go
// through the same formatter.
package app
