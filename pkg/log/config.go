// Package log configures the service-wide zerolog logger and carries
// per-request child loggers through context.
package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Pretty      bool   `mapstructure:"pretty"`
	ServiceName string `mapstructure:"service_name"`
}

var (
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	once sync.Once
)

// Init configures the global logger from cfg. Repeat calls are no-ops.
// Stdlib log output is rerouted through zerolog so stray log.Printf calls
// stay structured.
func Init(cfg Config) {
	once.Do(func() {
		logger := zerolog.New(writerFor(cfg)).
			Level(levelFor(cfg.Level)).
			With().Timestamp().Logger()
		if cfg.ServiceName != "" {
			logger = logger.With().Str(FieldService, cfg.ServiceName).Logger()
		}
		base = logger

		stdlog.SetFlags(0)
		stdlog.SetOutput(base.With().Str("source", "stdlog").Logger())
	})
}

// L returns the global logger.
func L() zerolog.Logger {
	return base
}

func writerFor(cfg Config) io.Writer {
	if cfg.Pretty {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return os.Stdout
}

// levelFor maps a config string to a zerolog level, defaulting to info on
// anything unrecognized.
func levelFor(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
