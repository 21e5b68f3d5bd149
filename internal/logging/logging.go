/*
DESCRIPTION
  logging.go provides the Logger interface used throughout udp-video, and
  a zap/lumberjack backed implementation of it.

LICENSE
  See the udp-video module root for license information.
*/

// Package logging provides the Logger interface shared by the sender,
// receiver and config packages, and a structured implementation of it
// backed by zap, with file rotation handled by lumberjack.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels, ordered least to most severe. These map directly onto
// zapcore levels.
const (
	Debug int8 = iota - 1
	Info
	Warning
	Error
	Fatal
)

// Logger is the logging interface used across udp-video. Any component
// that wants to emit diagnostics takes one of these rather than a
// concrete implementation.
type Logger interface {
	// Log emits a message at the given level with structured key/value
	// params, e.g. Log(Error, "send failed", "frame_id", id, "error", err).
	Log(level int8, message string, params ...interface{})

	Debug(msg string, params ...interface{})
	Info(msg string, params ...interface{})
	Warning(msg string, params ...interface{})
	Error(msg string, params ...interface{})
	Fatal(msg string, params ...interface{})

	// SetLevel adjusts the minimum level that will be emitted.
	SetLevel(level int8)
}

// zapLogger is a Logger backed by a zap.SugaredLogger.
type zapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// New returns a Logger that writes level-filtered, structured entries to
// w. suppress, when true, discards everything below Error (used when a
// caller wants near-silent operation but still wants fatal conditions
// surfaced).
func New(level int8, w io.Writer, suppress bool) Logger {
	if suppress && level < Error {
		level = Error
	}
	al := zap.NewAtomicLevelAt(toZapLevel(level))

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		al,
	)
	return &zapLogger{
		sugar: zap.New(core).Sugar(),
		level: al,
	}
}

// NewFileLogger returns a Logger that rotates its output through
// lumberjack, as cmd/rv/main.go does for revid.
func NewFileLogger(level int8, path string, maxSizeMB, maxBackups, maxAgeDays int) Logger {
	return New(level, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}, false)
}

func toZapLevel(l int8) zapcore.Level {
	switch {
	case l <= Debug:
		return zapcore.DebugLevel
	case l == Info:
		return zapcore.InfoLevel
	case l == Warning:
		return zapcore.WarnLevel
	case l == Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

func (z *zapLogger) SetLevel(level int8) { z.level.SetLevel(toZapLevel(level)) }

func (z *zapLogger) Log(level int8, message string, params ...interface{}) {
	switch {
	case level <= Debug:
		z.sugar.Debugw(message, params...)
	case level == Info:
		z.sugar.Infow(message, params...)
	case level == Warning:
		z.sugar.Warnw(message, params...)
	case level == Error:
		z.sugar.Errorw(message, params...)
	default:
		z.sugar.Fatalw(message, params...)
	}
}

func (z *zapLogger) Debug(msg string, params ...interface{})   { z.Log(Debug, msg, params...) }
func (z *zapLogger) Info(msg string, params ...interface{})    { z.Log(Info, msg, params...) }
func (z *zapLogger) Warning(msg string, params ...interface{}) { z.Log(Warning, msg, params...) }
func (z *zapLogger) Error(msg string, params ...interface{})   { z.Log(Error, msg, params...) }
func (z *zapLogger) Fatal(msg string, params ...interface{})   { z.Log(Fatal, msg, params...) }
