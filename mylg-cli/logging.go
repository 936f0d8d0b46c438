package mylgcli

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger returns the service's root logger: JSON on stdout for Lambda, a
// human readable console writer in console mode.
func Logger(service Service) zerolog.Logger {
	var w io.Writer = os.Stdout
	if CommonOpts.Console {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return newLogger(w, service)
}

func newLogger(w io.Writer, service Service) zerolog.Logger {
	level, err := zerolog.ParseLevel(CommonOpts.LogLevel)
	if err != nil || CommonOpts.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service.Name).
		Str("version", service.Version).
		Logger()
}
