package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/koivu/rolewarden/internal/logging"
)

// Start configures test logging and tags the test name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	log := logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
	return log
}
