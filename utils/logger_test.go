package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_StructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := FromZap(zap.New(core)).Named("detector")

	logger.Info("containers found", map[string]int{"count": 2})
	logger.Error("fill failed", errors.New("boom"))
	logger.Debug("no data")

	entries := logs.All()
	assert.Len(t, entries, 3)
	assert.Equal(t, "detector", entries[0].LoggerName)
	assert.Equal(t, map[string]int{"count": 2}, entries[0].ContextMap()["data"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Empty(t, entries[2].Context)
}

func TestSetGlobalLogger(t *testing.T) {
	original := GlobalLogger()
	defer SetGlobalLogger(original)

	core, logs := observer.New(zap.InfoLevel)
	SetGlobalLogger(FromZap(zap.New(core)))
	LogWarn("quota nearly full")
	SetGlobalLogger(nil)

	assert.Equal(t, 1, logs.Len())
	assert.NotNil(t, GlobalLogger())
}

func TestNewLoggerWithOptions_InvalidLevelFallsBack(t *testing.T) {
	l := NewLoggerWithOptions(LoggerOptions{Level: "loud"})
	assert.True(t, l.Zap().Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Zap().Core().Enabled(zap.DebugLevel))
}
