// Package logging builds the process-wide zap logger: a console core for
// interactive use teed with a lumberjack-rotated file core, both driven by
// one shared AtomicLevel so the level can change at runtime.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level, destination, and rotation.
type Config struct {
	Level      string `mapstructure:"level"`        // debug, info, warn, error
	FilePath   string `mapstructure:"file_path"`     // empty disables the file core
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func (c Config) withDefaults() Config {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 10
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
	return c
}

// New builds a logger plus the AtomicLevel backing it, so callers can adjust
// verbosity at runtime (e.g. from an operator CLI) without rebuilding cores.
func New(cfg Config) (*zap.Logger, zap.AtomicLevel, error) {
	cfg = cfg.withDefaults()

	level := parseLevel(cfg.Level)
	atomicLevel := zap.NewAtomicLevelAt(level)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), atomicLevel))

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, atomicLevel, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(fileWriter), atomicLevel))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logger, atomicLevel, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// DefaultLogDir returns the per-OS directory NuviiSync writes its rotated
// log file under.
func DefaultLogDir() string {
	switch {
	case os.Getenv("LOCALAPPDATA") != "":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "NuviiSync", "logs")
	case os.Getenv("HOME") != "":
		return filepath.Join(os.Getenv("HOME"), ".nuviisync", "logs")
	default:
		return "."
	}
}
