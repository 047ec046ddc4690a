// Package logging adapts zap to runtime.Logger so the roster engine logs the
// same way inside and outside the Nakama process.
package logging

import (
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger implements runtime.Logger on a zap logger.
type Logger struct {
	z      *zap.Logger
	s      *zap.SugaredLogger
	fields map[string]interface{}
}

// New builds a production zap logger, or a development logger at debug level
// when verbose is set.
func New(verbose bool) (*Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	z, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return Wrap(z), nil
}

// Wrap adapts an existing zap logger.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{z: z, s: z.Sugar(), fields: map[string]interface{}{}}
}

func (l *Logger) Debug(format string, v ...interface{}) { l.s.Debugf(format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.s.Infof(format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.s.Warnf(format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.s.Errorf(format, v...) }

func (l *Logger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		merged[k] = v
		zf = append(zf, zap.Any(k, v))
	}
	z := l.z.With(zf...)
	return &Logger{z: z, s: z.Sugar(), fields: merged}
}

func (l *Logger) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		out[k] = v
	}
	return out
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger { return l.z }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.z.Sync() }

var _ runtime.Logger = (*Logger)(nil)
