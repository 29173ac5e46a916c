package logger

import (
	"testing"

	"ai-trading-assistant-go/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("JSON production", func(t *testing.T) {
		log, err := NewLogger(config.Logger{Level: "warn", Format: "json"}, false)
		assert.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("Debug overrides level", func(t *testing.T) {
		log, err := NewLogger(config.Logger{Level: "error"}, true)
		assert.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("Invalid level", func(t *testing.T) {
		_, err := NewLogger(config.Logger{Level: "loud"}, false)
		assert.Error(t, err)
	})
}
