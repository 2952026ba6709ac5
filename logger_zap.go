package auth

import (
	"go.uber.org/zap"
)

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to Logger. A nil logger discards output.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return zapLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l zapLogger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

func (l zapLogger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l zapLogger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l zapLogger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}
