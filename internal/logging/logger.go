package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the process-wide logger. Console output is meant for
// interactive runs; everything else logs JSON lines.
func Init(level string, console bool) {
	InitWriter(os.Stdout, level, console)
}

func InitWriter(w io.Writer, level string, console bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
			Level(lvl).
			With().
			Timestamp().
			Logger()
		return
	}
	logger = zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func Logger() *zerolog.Logger {
	return &logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
