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
	"sync"
)

// Hooks holds the lifecycle callbacks of an [App].
type Hooks struct {
	mu         sync.Mutex
	onStart    []func(context.Context) error // sequential, first error aborts
	onReady    []func()                      // async
	onReload   []func(context.Context) error // sequential, errors joined
	onShutdown []func(context.Context)       // LIFO
	onStop     []func()                      // best effort
}

// OnStart registers a hook run before the server listens. Hooks run in
// order and the first error aborts startup.
//
//	a.OnStart(func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
func (a *App) OnStart(fn func(context.Context) error) {
	a.mustNotBeStarted()
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	a.hooks.onStart = append(a.hooks.onStart, fn)
}

// OnReady registers a hook run in its own goroutine once the server is
// about to accept connections. Panics are logged.
func (a *App) OnReady(fn func()) {
	a.mustNotBeStarted()
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	a.hooks.onReady = append(a.hooks.onReady, fn)
}

// OnReload registers a hook run by [App.Reload] and, on Unix, on SIGHUP.
// Without reload hooks SIGHUP is ignored while the app runs.
func (a *App) OnReload(fn func(context.Context) error) {
	a.mustNotBeStarted()
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	a.hooks.onReload = append(a.hooks.onReload, fn)
}

// OnShutdown registers a hook run during graceful shutdown with the
// shutdown deadline. Hooks run in reverse registration order.
func (a *App) OnShutdown(fn func(context.Context)) {
	a.mustNotBeStarted()
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	a.hooks.onShutdown = append(a.hooks.onShutdown, fn)
}

// OnStop registers a hook run after the server stopped. Panics are logged.
func (a *App) OnStop(fn func()) {
	a.mustNotBeStarted()
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	a.hooks.onStop = append(a.hooks.onStop, fn)
}

// Reload runs every OnReload hook and joins their errors.
func (a *App) Reload(ctx context.Context) error {
	var errs error
	for i, hook := range snapshot(a, a.hooks.onReload) {
		if err := hook(ctx); err != nil {
			errs = errors.Join(errs, fmt.Errorf("OnReload hook %d: %w", i, err))
		}
	}
	return errs
}

func (a *App) mustNotBeStarted() {
	if a.started.Load() {
		panic("app: cannot register hooks after Start")
	}
}

func snapshot[F any](a *App, hooks []F) []F {
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	return append([]F(nil), hooks...)
}

func (a *App) executeStartHooks(ctx context.Context) error {
	for i, hook := range snapshot(a, a.hooks.onStart) {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("OnStart hook %d failed: %w", i, err)
		}
	}
	return nil
}

func (a *App) executeReadyHooks() {
	for _, hook := range snapshot(a, a.hooks.onReady) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.Logger().Error("OnReady hook panic", "error", r)
				}
			}()
			hook()
		}()
	}
}

func (a *App) executeShutdownHooks(ctx context.Context) {
	hooks := snapshot(a, a.hooks.onShutdown)
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](ctx)
	}
}

func (a *App) executeStopHooks() {
	for _, hook := range snapshot(a, a.hooks.onStop) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.Logger().Log(context.Background(), slog.LevelError, "OnStop hook panic", "error", r)
				}
			}()
			hook()
		}()
	}
}

func (a *App) hasReloadHooks() bool {
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	return len(a.hooks.onReload) > 0
}
