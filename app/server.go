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

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Start runs the server on the configured address until ctx is canceled,
// then shuts down gracefully within the configured shutdown timeout.
//
// Order: observability, OnStart hooks, banner, listen, OnReady hooks. On
// shutdown: OnShutdown hooks, server drain, observability flush, OnStop
// hooks.
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer cancel()
//
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
func (a *App) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := a.startObservability(ctx); err != nil {
		return fmt.Errorf("failed to start observability: %w", err)
	}
	if err := a.executeStartHooks(ctx); err != nil {
		a.shutdownObservability(context.Background())
		return fmt.Errorf("startup failed: %w", err)
	}
	return a.runServer(ctx, a.settings.Server.Addr)
}

func (a *App) startObservability(ctx context.Context) error {
	if a.tracing != nil {
		if err := a.tracing.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) shutdownObservability(ctx context.Context) {
	logger := a.Logger()
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			logger.WarnContext(ctx, "metrics shutdown failed", "error", err)
		}
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			logger.WarnContext(ctx, "tracing shutdown failed", "error", err)
		}
	}
}

func (a *App) runServer(ctx context.Context, addr string) error {
	logger := a.Logger()
	protocol := "HTTP"
	if a.settings.Server.H2C {
		protocol = "h2c"
	}

	if a.settings.Server.Banner {
		a.printStartupBanner(a.bannerOut, addr, protocol)
	}
	logger.InfoContext(ctx, "server starting",
		"address", addr,
		"environment", a.settings.Server.Environment,
		"protocol", protocol,
		"metrics_enabled", a.metrics != nil,
		"tracing_enabled", a.tracing != nil,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.router.Serve(addr)
	}()
	a.executeReadyHooks()

	var reload <-chan struct{}
	if a.hasReloadHooks() {
		ch, stop := setupReloadSignal()
		defer stop()
		reload = ch
	} else {
		ignoreReloadSignal()
	}

wait:
	for {
		select {
		case err := <-serverErr:
			a.shutdownObservability(context.Background())
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("%s server failed: %w", protocol, err)
		case <-reload:
			logger.InfoContext(ctx, "reloading")
			if err := a.Reload(ctx); err != nil {
				logger.ErrorContext(ctx, "reload failed", "error", err)
			}
		case <-ctx.Done():
			logger.InfoContext(ctx, "server shutting down", "protocol", protocol, "reason", context.Cause(ctx))
			break wait
		}
	}

	// ctx is already done; the shutdown deadline starts now.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.Server.ShutdownTimeout)
	defer cancel()

	a.executeShutdownHooks(shutdownCtx)
	if err := a.drain(shutdownCtx, serverErr); err != nil {
		return fmt.Errorf("%s server forced to shutdown: %w", protocol, err)
	}
	a.shutdownObservability(shutdownCtx)
	a.executeStopHooks()

	logger.Log(shutdownCtx, slog.LevelInfo, "server exited", "protocol", protocol)
	return nil
}

// drain shuts the server down and waits for Serve to return. Shutdown is
// retried while the listener has not been created yet.
func (a *App) drain(ctx context.Context, serverErr <-chan error) error {
	for {
		if err := a.router.Shutdown(ctx); err != nil {
			return err
		}
		select {
		case err := <-serverErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
