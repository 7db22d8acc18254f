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

package compression

import (
	"compress/gzip"
	"log/slog"

	"github.com/andybalholm/brotli"
)

// Option configures the compression middleware.
type Option func(*config)

type config struct {
	logger *slog.Logger

	// 0-9 for gzip, 0-11 for Brotli. Keep Brotli at 4-5 for dynamic content.
	gzipLevel   int
	brotliLevel int

	minSize      int
	enableGzip   bool
	enableBrotli bool

	excludePaths        map[string]bool
	excludeExtensions   map[string]bool
	excludeContentTypes map[string]bool
}

func defaultConfig() *config {
	return &config{
		logger:              slog.Default(),
		gzipLevel:           gzip.DefaultCompression,
		brotliLevel:         4,
		enableGzip:          true,
		enableBrotli:        true,
		excludePaths:        make(map[string]bool),
		excludeExtensions:   make(map[string]bool),
		excludeContentTypes: make(map[string]bool),
	}
}

// WithLogger sets the logger for compression failures.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithGzipLevel sets the gzip level. Out of range values are clamped.
func WithGzipLevel(level int) Option {
	return func(cfg *config) {
		cfg.gzipLevel = max(gzip.HuffmanOnly, min(level, gzip.BestCompression))
	}
}

// WithBrotliLevel sets the Brotli level. Out of range values are clamped.
func WithBrotliLevel(level int) Option {
	return func(cfg *config) {
		cfg.brotliLevel = max(brotli.BestSpeed, min(level, brotli.BestCompression))
	}
}

// WithMinSize sets the smallest body, in bytes, worth compressing.
// Default: 0, compress every eligible body.
func WithMinSize(size int) Option {
	return func(cfg *config) {
		cfg.minSize = max(size, 0)
	}
}

// WithGzipDisabled turns gzip off.
func WithGzipDisabled() Option {
	return func(cfg *config) {
		cfg.enableGzip = false
	}
}

// WithBrotliDisabled turns Brotli off.
func WithBrotliDisabled() Option {
	return func(cfg *config) {
		cfg.enableBrotli = false
	}
}

// WithExcludePaths disables compression for exact paths.
func WithExcludePaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.excludePaths[p] = true
		}
	}
}

// WithExcludeExtensions disables compression for paths ending in one of exts.
func WithExcludeExtensions(exts ...string) Option {
	return func(cfg *config) {
		for _, ext := range exts {
			cfg.excludeExtensions[ext] = true
		}
	}
}

// WithExcludeContentTypes disables compression for matching content types.
func WithExcludeContentTypes(types ...string) Option {
	return func(cfg *config) {
		for _, ct := range types {
			cfg.excludeContentTypes[ct] = true
		}
	}
}
