package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"alpacabot/internal/config"
)

func TestBuildConfig_Defaults(t *testing.T) {
	zc, err := buildConfig(config.LogConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.Equal(t, "console", zc.Encoding)
	assert.Equal(t, zapcore.InfoLevel, zc.Level.Level())
	assert.Nil(t, zc.Sampling)
	assert.Empty(t, zc.InitialFields)
}

func TestBuildConfig_JSON(t *testing.T) {
	zc, err := buildConfig(config.LogConfig{Level: "DEBUG", Encoding: "json", Sampling: true})
	require.NoError(t, err)
	assert.Equal(t, "json", zc.Encoding)
	assert.Equal(t, zapcore.DebugLevel, zc.Level.Level())
	assert.Equal(t, "alpaca-bot", zc.InitialFields["service"])
	require.NotNil(t, zc.Sampling)
	assert.Equal(t, 100, zc.Sampling.Initial)
}

func TestNew(t *testing.T) {
	l, err := New(config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
