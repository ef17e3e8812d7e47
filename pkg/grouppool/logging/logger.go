// Package logging provides grouppool's structured logging, shaped
// after NoiseFS's pkg/common/logging API (Logger, FieldLogger,
// WithComponent, a package-level global logger) but backed by
// go.uber.org/zap instead of a hand-rolled formatter. grouppool has no
// PII of its own to sanitize — tags, task counts and durations aren't
// sensitive — so the sanitization layer NoiseFS built around that API
// is dropped rather than carried along unused.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors NoiseFS's LogLevel hierarchy.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Format selects the zap encoder used by a Logger.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// Config configures a new Logger.
type Config struct {
	Level     Level
	Format    Format
	Component string
	// Output defaults to os.Stdout when nil.
	Output io.Writer
}

// DefaultConfig returns an InfoLevel, text-format configuration.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Format: TextFormat}
}

// Logger wraps a *zap.SugaredLogger with the Component/WithField
// idiom for attributing log lines to a subsystem.
type Logger struct {
	sugar     *zap.SugaredLogger
	component string
}

// NewLogger builds a Logger from cfg.
func NewLogger(cfg Config) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == JSONFormat {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(output), cfg.Level.zapLevel())
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	l := &Logger{sugar: base.Sugar(), component: cfg.Component}
	if cfg.Component != "" {
		l.sugar = l.sugar.With("component", cfg.Component)
	}
	return l
}

// WithComponent returns a Logger scoped to a named subsystem.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sugar: l.sugar.With("component", component), component: component}
}

// WithField returns a FieldLogger carrying one structured field
// forward to its eventual Debug/Info/Warn/Error call.
func (l *Logger) WithField(key string, value interface{}) *FieldLogger {
	return &FieldLogger{sugar: l.sugar.With(key, value)}
}

// WithFields is the multi-field form of WithField.
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &FieldLogger{sugar: l.sugar.With(args...)}
}

func (l *Logger) Debug(message string, fields ...map[string]interface{}) { l.log(zapcore.DebugLevel, message, fields) }
func (l *Logger) Info(message string, fields ...map[string]interface{})  { l.log(zapcore.InfoLevel, message, fields) }
func (l *Logger) Warn(message string, fields ...map[string]interface{})  { l.log(zapcore.WarnLevel, message, fields) }
func (l *Logger) Error(message string, fields ...map[string]interface{}) { l.log(zapcore.ErrorLevel, message, fields) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func (l *Logger) log(level zapcore.Level, message string, fields []map[string]interface{}) {
	var args []interface{}
	for _, set := range fields {
		for k, v := range set {
			args = append(args, k, v)
		}
	}
	switch level {
	case zapcore.DebugLevel:
		l.sugar.Debugw(message, args...)
	case zapcore.WarnLevel:
		l.sugar.Warnw(message, args...)
	case zapcore.ErrorLevel:
		l.sugar.Errorw(message, args...)
	default:
		l.sugar.Infow(message, args...)
	}
}

// Sync flushes any buffered log entries; callers should defer it from
// main.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// FieldLogger accumulates structured fields across chained WithField
// calls before a terminal Debug/Info/Warn/Error/f call emits them.
type FieldLogger struct {
	sugar *zap.SugaredLogger
}

func (fl *FieldLogger) WithField(key string, value interface{}) *FieldLogger {
	return &FieldLogger{sugar: fl.sugar.With(key, value)}
}

func (fl *FieldLogger) Debug(message string) { fl.sugar.Debug(message) }
func (fl *FieldLogger) Info(message string)  { fl.sugar.Info(message) }
func (fl *FieldLogger) Warn(message string)  { fl.sugar.Warn(message) }
func (fl *FieldLogger) Error(message string) { fl.sugar.Error(message) }

func (fl *FieldLogger) Debugf(format string, args ...interface{}) { fl.sugar.Debugf(format, args...) }
func (fl *FieldLogger) Infof(format string, args ...interface{})  { fl.sugar.Infof(format, args...) }
func (fl *FieldLogger) Warnf(format string, args ...interface{})  { fl.sugar.Warnf(format, args...) }
func (fl *FieldLogger) Errorf(format string, args ...interface{}) { fl.sugar.Errorf(format, args...) }

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger sets the package-level default Logger.
func InitGlobalLogger(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = NewLogger(cfg)
}

// GetGlobalLogger returns the package-level Logger, lazily
// initializing one with DefaultConfig if InitGlobalLogger was never
// called.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(DefaultConfig())
	}
	return globalLogger
}

func Debug(message string, fields ...map[string]interface{}) { GetGlobalLogger().Debug(message, fields...) }
func Info(message string, fields ...map[string]interface{})  { GetGlobalLogger().Info(message, fields...) }
func Warn(message string, fields ...map[string]interface{})  { GetGlobalLogger().Warn(message, fields...) }
func Error(message string, fields ...map[string]interface{}) { GetGlobalLogger().Error(message, fields...) }

// ParseLevel parses a case-insensitive level name, mirroring NoiseFS's
// ParseLogLevel.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("logging: unknown level %q", level)
	}
}
