package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tolppa-client/config"
)

func TestInit_Level(t *testing.T) {
	require.NoError(t, Init(config.LogConfig{Level: "warn"}))
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())

	require.NoError(t, Init(config.LogConfig{Level: "warn", Debug: true}))
	assert.Equal(t, zerolog.DebugLevel, log.Logger.GetLevel())
}

func TestInit_BadLevel(t *testing.T) {
	assert.Error(t, Init(config.LogConfig{Level: "loud"}))
}
