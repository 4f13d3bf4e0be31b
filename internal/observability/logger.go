package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the process-wide logger for a relay binary. Frames
// move on hot paths, so per-message logging stays at debug; the console
// writer is for an operator tailing one node.
func InitLogger(component string) zerolog.Logger {
	zerolog.DurationFieldUnit = time.Millisecond
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339Nano,
	}
	logger := zerolog.New(output).With().
		Timestamp().
		Str("component", component).
		Int("pid", os.Getpid()).
		Logger()
	log.Logger = logger
	return logger
}
