// Copyright 2025 The LAMA Jockey Authors
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

// Package log provides context-scoped logging helpers on top of [log/slog].
// A logger attached with [WithLogger] is used by the package-level functions, which
// attribute records to their caller rather than to this package.
package log

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

type loggerKey struct{}

// WithLogger creates a new Context with the provided Logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the Logger associated with the context, or [slog.Default] if no logger is available.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// AttachAttrs attaches key-value pairs to the Logger associated with the context.
func AttachAttrs(ctx context.Context, keyValArgs ...any) context.Context {
	return WithLogger(ctx, LoggerFrom(ctx).With(keyValArgs...))
}

// Log logs at the provided level using the Logger associated with the Context.
func Log(ctx context.Context, level slog.Level, msg string, keyValArgs ...any) {
	doLog(ctx, level, msg, keyValArgs...)
}

// Verbose logs at debug level using the Logger associated with the Context.
func Verbose(ctx context.Context, msg string, keyValArgs ...any) {
	doLog(ctx, slog.LevelDebug, msg, keyValArgs...)
}

// Info logs at info level using the Logger associated with the Context.
func Info(ctx context.Context, msg string, keyValArgs ...any) {
	doLog(ctx, slog.LevelInfo, msg, keyValArgs...)
}

// Warn logs at warn level using the Logger associated with the Context.
func Warn(ctx context.Context, msg string, keyValArgs ...any) {
	doLog(ctx, slog.LevelWarn, msg, keyValArgs...)
}

// Error logs at error level with the provided error attached using the Logger associated with the Context.
func Error(ctx context.Context, msg string, err error, keyValArgs ...any) {
	doLog(ctx, slog.LevelError, msg, append([]any{"error", err}, keyValArgs...)...)
}

// doLog must be called directly by an exported function so that the source points to its caller.
func doLog(ctx context.Context, level slog.Level, msg string, keyValArgs ...any) {
	logger := LoggerFrom(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// skip [runtime.Callers, doLog, exported function]
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(keyValArgs...)
	_ = logger.Handler().Handle(ctx, record)
}
