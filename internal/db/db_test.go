package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacabot/internal/config"
)

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "postgres", DSN: "  "})
	require.Error(t, err)
}

func TestNilSafeHelpers(t *testing.T) {
	assert.NoError(t, Close(nil))
	assert.NoError(t, Ping(nil))
	assert.NoError(t, SetTimezone(nil, "UTC"))
	assert.NoError(t, AutoMigrate(nil))
}

func TestNowUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NowUTC().Location())
}
