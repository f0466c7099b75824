package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger returns the global logger tagged with app and node.
func ComponentLogger(app, node string) zerolog.Logger {
	return log.Logger.With().Str("app", app).Str("node", node).Logger()
}
