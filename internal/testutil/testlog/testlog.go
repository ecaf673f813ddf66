package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// Start returns a debug logger that writes through t.Log.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	logger.Info().Str("test", t.Name()).Msg("start")
	return logger
}
