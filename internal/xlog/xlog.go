/*
 *    Copyright 2026 The Mercurio Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package xlog wraps zap with the module-scoped logger pattern the
// broker uses everywhere: every subsystem gets its own named logger via
// LoggerModule, and output optionally rotates through lumberjack.
package xlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is a thin alias so call sites (xlog.Log) don't need to know this
// is zap underneath.
type Log = zap.Logger

var (
	base *zap.Logger = zap.NewNop()
	// level is shared by every core Init builds, so a re-Init changes the
	// level of loggers handed out before it too.
	level = zap.NewAtomicLevel()
)

// Options configures the process-wide base logger, built once at
// startup from config.Logging.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init builds the process-wide base logger. Call once, at startup,
// before any LoggerModule call; SIGHUP reload calls it again to apply a
// changed level. Loggers taken before a re-Init keep their old output
// destination.
func Init(opts Options) error {
	level.SetLevel(parseLevel(opts.Level))

	var ws zapcore.WriteSyncer
	if opts.File != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    nonZero(opts.MaxSizeMB, 100),
			MaxBackups: nonZero(opts.MaxBackups, 3),
			MaxAge:     nonZero(opts.MaxAgeDays, 28),
		})
	} else {
		ws = zapcore.AddSync(os.Stdout)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, level)

	base = zap.New(core, zap.AddCaller())
	return nil
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// parseLevel maps the spec's trace/debug/info/warn/error scale onto
// zap's levels; "trace" has no zap equivalent so it maps to Debug.
func parseLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LoggerModule returns a logger tagged with "module" = name, mirroring
// the broker's xlog.LoggerModule("server") call sites.
func LoggerModule(name string) *zap.Logger {
	return base.With(zap.String("module", name))
}
