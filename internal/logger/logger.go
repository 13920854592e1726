package logger

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	ServiceName string
	// IsInternal tees every entry into the global OpenTelemetry logger provider.
	IsInternal bool
	// IsDevelopment switches to console encoding for local runs.
	IsDevelopment bool
	IsDebug       bool
	InitialFields []zap.Field

	Cores []zapcore.Core
}

func (c LoggerConfig) level() zap.AtomicLevel {
	if c.IsDebug {
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}

func (c LoggerConfig) encoding() string {
	if c.IsDevelopment {
		return "console"
	}

	return "json"
}

func NewLogger(_ context.Context, loggerConfig LoggerConfig) (*zap.Logger, error) {
	config := zap.Config{
		Level:            loggerConfig.level(),
		Development:      loggerConfig.IsDevelopment,
		Encoding:         loggerConfig.encoding(),
		EncoderConfig:    GetEncoderConfig(zapcore.DefaultLineEnding),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	extra := make([]zapcore.Core, 0, len(loggerConfig.Cores)+1)
	if loggerConfig.IsInternal {
		extra = append(extra, otelzap.NewCore(
			loggerConfig.ServiceName,
			otelzap.WithLoggerProvider(global.GetLoggerProvider()),
		))
	}
	extra = append(extra, loggerConfig.Cores...)

	l, err := config.Build(
		zap.WrapCore(func(base zapcore.Core) zapcore.Core {
			return zapcore.NewTee(append(extra, base)...)
		}),
		zap.Fields(
			zap.String("service", loggerConfig.ServiceName),
			zap.Int("pid", os.Getpid()),
		),
		zap.Fields(loggerConfig.InitialFields...),
	)
	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}

	return l, nil
}

func GetEncoderConfig(lineEnding string) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		MessageKey:    "message",
		LevelKey:      "level",
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		NameKey:       "logger",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339TimeEncoder,
		LineEnding:    lineEnding,
	}
}
