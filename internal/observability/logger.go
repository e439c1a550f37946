package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger derives a component-scoped logger from the global logger.
func Logger(component string) zerolog.Logger {
	return log.With().Str("app", "spacectl").Str("component", component).Logger()
}
