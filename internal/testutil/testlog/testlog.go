package testlog

import (
	"testing"

	"github.com/danmuck/iggywire/internal/logging"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Msgf("test=%s", t.Name())
}
