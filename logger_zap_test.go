package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	auth "github.com/goliatone/go-tenant-auth"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := auth.NewZapLogger(zap.New(core))

	logger.Debug("debug %d", 1)
	logger.Info("info %s", "two")
	logger.Warn("warn")
	logger.Error("error %v", assert.AnError)

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 4) {
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, "debug 1", entries[0].Message)
		assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
		assert.Equal(t, "info two", entries[1].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
		assert.Equal(t, "error "+assert.AnError.Error(), entries[3].Message)
	}
}

func TestZapLoggerNil(t *testing.T) {
	logger := auth.NewZapLogger(nil)
	assert.NotPanics(t, func() {
		logger.Info("discarded %s", "message")
	})
}
