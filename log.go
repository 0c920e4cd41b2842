package fbwire

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// newLogger builds the per-connection logger. Every event carries the
// connection id so interleaved connections can be told apart.
func newLogger(level, connID string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			lvl = parsed
		}
	}
	return zerolog.New(os.Stderr).
		Level(lvl).
		With().
		Timestamp().
		Str("conn", connID).
		Logger()
}
