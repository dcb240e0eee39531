package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Setup(Options{Level: "WARN", Production: true})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Setup(Options{Level: "bogus", Production: true})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	Setup(Options{Level: "info", File: path, Production: true})
	defer Setup(Options{Level: "info", Production: true})

	log.Info().Str("component", "test").Msg("hello file")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"hello file"`)
	assert.Contains(t, string(raw), `"component":"test"`)
}
