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

package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// HandlerType selects the output format.
type HandlerType string

const (
	// JSONHandler writes one JSON object per record.
	JSONHandler HandlerType = "json"
	// TextHandler writes logfmt style key=value records.
	TextHandler HandlerType = "text"
	// ConsoleHandler writes colored, human readable records.
	ConsoleHandler HandlerType = "console"
)

// ParseHandlerType maps a configuration string to a [HandlerType].
func ParseHandlerType(s string) (HandlerType, error) {
	switch t := HandlerType(strings.ToLower(strings.TrimSpace(s))); t {
	case JSONHandler, TextHandler, ConsoleHandler:
		return t, nil
	case "":
		return JSONHandler, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidHandler, s)
	}
}

// Level is an alias of [slog.Level].
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel maps "debug", "info", "warn" or "error" to a [Level].
func ParseLevel(s string) (Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

var (
	ErrNilLogger      = errors.New("logging: custom logger is nil")
	ErrNilOutput      = errors.New("logging: output writer is nil")
	ErrInvalidHandler = errors.New("logging: invalid handler type")
	ErrInvalidLevel   = errors.New("logging: invalid log level")

	// ErrCannotChangeLevel is returned by [Logger.SetLevel] on a logger
	// built from [WithCustomLogger].
	ErrCannotChangeLevel = errors.New("logging: cannot change level of a custom logger")
)

// redacted replaces the value of sensitive attributes.
const redacted = "***REDACTED***"

// sensitiveKeys are matched case-insensitively at any group depth.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"api_key":       {},
	"authorization": {},
}

// Logger owns a configured [*slog.Logger]. The level can be changed at
// runtime; everything else is fixed at construction.
//
// All methods are safe for concurrent use.
type Logger struct {
	handlerType HandlerType
	output      io.Writer
	level       slog.LevelVar
	noColor     bool

	serviceName    string
	serviceVersion string
	environment    string

	addSource      bool
	replaceAttr    func(groups []string, a slog.Attr) slog.Attr
	customLogger   *slog.Logger
	useCustom      bool
	registerGlobal bool

	slogger atomic.Pointer[slog.Logger]
}

// Option configures a [Logger].
type Option func(*Logger)

func defaultLogger() *Logger {
	l := &Logger{
		handlerType: JSONHandler,
		output:      os.Stdout,
	}
	l.level.Set(LevelInfo)
	return l
}

// New builds a Logger. It does not touch [slog.Default] unless
// [WithGlobalLogger] is given.
func New(opts ...Option) (*Logger, error) {
	l := defaultLogger()
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sl, err := l.build()
	if err != nil {
		return nil, err
	}
	l.slogger.Store(sl)
	if l.registerGlobal {
		slog.SetDefault(sl)
	}
	return l, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Logger {
	l, err := New(opts...)
	if err != nil {
		panic("logging initialization failed: " + err.Error())
	}
	return l
}

// Validate checks the configuration.
func (l *Logger) Validate() error {
	if l.useCustom {
		if l.customLogger == nil {
			return ErrNilLogger
		}
		return nil
	}
	if l.output == nil {
		return ErrNilOutput
	}
	switch l.handlerType {
	case JSONHandler, TextHandler, ConsoleHandler:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHandler, l.handlerType)
	}
}

func (l *Logger) build() (*slog.Logger, error) {
	if l.useCustom {
		return l.customLogger, nil
	}

	opts := &slog.HandlerOptions{
		Level:       &l.level,
		AddSource:   l.addSource,
		ReplaceAttr: l.buildReplaceAttr(),
	}

	var h slog.Handler
	switch l.handlerType {
	case JSONHandler:
		h = slog.NewJSONHandler(l.output, opts)
	case TextHandler:
		h = slog.NewTextHandler(l.output, opts)
	case ConsoleHandler:
		h = newConsoleHandler(l.output, opts, !l.noColor && isTerminal(l.output))
	}

	sl := slog.New(h)
	var attrs []any
	if l.serviceName != "" {
		attrs = append(attrs, "service", l.serviceName)
	}
	if l.serviceVersion != "" {
		attrs = append(attrs, "version", l.serviceVersion)
	}
	if l.environment != "" {
		attrs = append(attrs, "env", l.environment)
	}
	if len(attrs) > 0 {
		sl = sl.With(attrs...)
	}
	return sl, nil
}

func (l *Logger) buildReplaceAttr() func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if isSensitive(a.Key) {
			return slog.String(a.Key, redacted)
		}
		if l.replaceAttr != nil {
			return l.replaceAttr(groups, a)
		}
		return a
	}
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Logger returns the underlying [*slog.Logger].
func (l *Logger) Logger() *slog.Logger {
	return l.slogger.Load()
}

// With returns a [*slog.Logger] carrying args.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.Logger().With(args...)
}

// WithGroup returns a [*slog.Logger] that nests attributes under name.
func (l *Logger) WithGroup(name string) *slog.Logger {
	return l.Logger().WithGroup(name)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.Logger().Log(context.Background(), LevelDebug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.Logger().Log(context.Background(), LevelInfo, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.Logger().Log(context.Background(), LevelWarn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.Logger().Log(context.Background(), LevelError, msg, args...)
}

// SetLevel changes the minimum level. Records already filtered are not
// replayed.
func (l *Logger) SetLevel(level Level) error {
	if l.useCustom {
		return ErrCannotChangeLevel
	}
	l.level.Set(level)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// Handler returns the configured handler type.
func (l *Logger) Handler() HandlerType {
	return l.handlerType
}

// ServiceName returns the value of the "service" attribute.
func (l *Logger) ServiceName() string { return l.serviceName }

// ServiceVersion returns the value of the "version" attribute.
func (l *Logger) ServiceVersion() string { return l.serviceVersion }

// Environment returns the value of the "env" attribute.
func (l *Logger) Environment() string { return l.environment }

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
