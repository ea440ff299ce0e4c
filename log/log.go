// Package log holds the process wide zap logger used by every component.
package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

func init() {
	if l, err := build("info", "console"); err == nil {
		logger = l
	}
}

// 按日志级别与格式（json/console）初始化全局logger
func Init(level, format string) (err error) {
	l, err := build(level, format)
	if err != nil {
		return
	}
	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()
	_ = old.Sync()
	return
}

func build(level, format string) (l *zap.Logger, err error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err = cfg.Build(zap.AddCallerSkip(1))
	return
}

// Replace swaps the global logger, mostly for tests. It returns a func that restores the previous one.
func Replace(l *zap.Logger) (restore func()) {
	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()
	return func() {
		mu.Lock()
		logger = old
		mu.Unlock()
	}
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

func Sync() error {
	return L().Sync()
}
