// Package logger provides structured logging for the scheduler service.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface defines the logging surface used throughout the scheduler.
// Fields are passed as alternating key/value pairs, matching the style
// used by the rest of the core components (classifier, scheduler, pipeline).
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Fatal(msg string, fields ...any)
	With(fields ...any) Interface
}

// Config configures the logger.
type Config struct {
	Level       string `env:"LOG_LEVEL"       yaml:"level"`
	Development bool   `yaml:"development"`
	OutputPaths []string
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a Logger from Config.
func New(cfg Config) (Interface, error) {
	cfg.SetDefaults()

	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zapCfg.OutputPaths = cfg.OutputPaths

	if cfg.Development {
		zapCfg.Sampling = nil
		zapCfg.Development = true
	}

	z, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return &zapLogger{z: z}, nil
}

// Must builds a Logger and exits the process on failure.
func Must(cfg Config) Interface {
	l, err := New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return l
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// fieldsToZap converts alternating key/value pairs into zap.Field values.
// An odd trailing value with no key is logged as "EXTRA_VALUE_AT_END".
func fieldsToZap(fields []any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			out = append(out, zap.Any("EXTRA_VALUE_AT_END", fields[i]))
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		out = append(out, zap.Any(key, fields[i+1]))
	}
	return out
}

func (l *zapLogger) Debug(msg string, fields ...any) { l.z.Debug(msg, fieldsToZap(fields)...) }
func (l *zapLogger) Info(msg string, fields ...any)  { l.z.Info(msg, fieldsToZap(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...any)  { l.z.Warn(msg, fieldsToZap(fields)...) }
func (l *zapLogger) Error(msg string, fields ...any) { l.z.Error(msg, fieldsToZap(fields)...) }
func (l *zapLogger) Fatal(msg string, fields ...any) { l.z.Fatal(msg, fieldsToZap(fields)...) }

func (l *zapLogger) With(fields ...any) Interface {
	return &zapLogger{z: l.z.With(fieldsToZap(fields)...)}
}

// NewNop returns a Logger that discards all output. Useful for tests.
func NewNop() Interface {
	return &zapLogger{z: zap.NewNop()}
}
