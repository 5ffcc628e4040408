// Package logger provides component-tagged structured logging for all
// parley subsystems. Components log through the *CF helpers so every line
// carries its component name plus structured fields.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = build(false)
)

func build(debug bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		// zap's production config cannot fail to build with these settings,
		// but fall back to a no-op logger rather than panic at init.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetDebug switches the process-wide log level.
func SetDebug(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	base = build(debug)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	logCF(zapcore.DebugLevel, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	logCF(zapcore.InfoLevel, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	logCF(zapcore.WarnLevel, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	logCF(zapcore.ErrorLevel, component, msg, fields)
}

func logCF(level zapcore.Level, component, msg string, fields map[string]interface{}) {
	mu.RLock()
	l := base
	mu.RUnlock()

	kv := make([]interface{}, 0, 2+2*len(fields))
	kv = append(kv, "component", component)
	for k, v := range fields {
		kv = append(kv, k, v)
	}

	switch level {
	case zapcore.DebugLevel:
		l.Debugw(msg, kv...)
	case zapcore.WarnLevel:
		l.Warnw(msg, kv...)
	case zapcore.ErrorLevel:
		l.Errorw(msg, kv...)
	default:
		l.Infow(msg, kv...)
	}
}
