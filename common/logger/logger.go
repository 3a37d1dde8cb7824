// Package logger builds the zap loggers used by the bake pipeline and the CLI.
package logger

import (
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level       string `json:"level"`
	File        string `json:"file"`
	MaxSizeMB   int    `json:"maxSizeMB"`
	MaxBackups  int    `json:"maxBackups"`
	MaxAgeDays  int    `json:"maxAgeDays"`
	Development bool   `json:"development"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  64,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// ParseLevel accepts the zap level names, case-insensitively. Unknown names fall
// back to info.
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// New returns a logger writing console output to stderr and, when cfg.File is
// set, JSON lines to a rotating file.
func New(cfg Config) *zap.Logger {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stderr), level),
	}
	if cfg.File != "" {
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		w := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(w), level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// OrNop lets library code accept a nil logger.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
