// Package logger wraps zap with the process-wide logger used by the
// server, the engine and the queue workers.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger embeds *zap.Logger so callers log with typed fields:
//
//	log.Info("reservation booked", zap.Uint64("reservation_id", id))
type Logger struct {
	*zap.Logger
}

// Config selects the encoder and level.
type Config struct {
	Level       string // debug, info, warn, error
	ServiceName string
	Development bool
}

var (
	mu     sync.RWMutex
	global = Nop()
)

// New builds a Logger. Development mode uses the console encoder with
// colored levels; otherwise JSON is written with ISO8601 timestamps.
func New(cfg Config) (*Logger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	z, err := zc.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName != "" {
		z = z.With(zap.String("service", cfg.ServiceName))
	}
	return &Logger{Logger: z}, nil
}

// Init builds a Logger from cfg and installs it as the global logger.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return nil
}

// Get returns the global logger. Before Init it is a no-op logger.
func Get() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes the global logger.
func Sync() {
	_ = Get().Sync()
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}
