package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with a key-value call style used across the service.
type Logger struct {
	zap *zap.Logger
	sug *zap.SugaredLogger
}

// New creates a logger for the given level and environment.
// Production uses JSON encoding; everything else uses the console encoder.
func New(level, environment string) *Logger {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		z = zap.NewNop()
	}

	return &Logger{zap: z, sug: z.Sugar()}
}

// NewNop returns a logger that discards everything (tests).
func NewNop() *Logger {
	z := zap.NewNop()
	return &Logger{zap: z, sug: z.Sugar()}
}

// Zap exposes the underlying zap logger for libraries that want it directly.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// With returns a child logger with the given key-value context attached.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	sug := l.sug.With(keysAndValues...)
	return &Logger{zap: sug.Desugar(), sug: sug}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sug.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sug.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sug.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sug.Errorw(msg, keysAndValues...)
}

// Fatal logs the message and exits the process. Startup-validation only.
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sug.Fatalw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
