// ABOUTME: Structured logger construction
// ABOUTME: zap JSON logs rotated by lumberjack, optionally teed to stdout
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	// File is the log file path; empty disables file output
	File string

	// Stdout also writes human-readable logs to stdout
	Stdout bool

	// Debug lowers the level to debug
	Debug bool
}

// New builds a logger writing JSON to a rotated file and, optionally, console
// output to stdout. With neither output configured it returns a no-op logger.
func New(config Config) *zap.Logger {
	level := zap.InfoLevel
	if config.Debug {
		level = zap.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core

	if config.File != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), w, level))
	}

	if config.Stdout {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(os.Stdout),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
