package internal

import (
	"log/slog"

	"github.com/starford/fathom/internal/noteservice"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
	sink   noteservice.EventSink
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger sets the logger. Without it a JSON logger on stderr is built
// from the configured level.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithEventSink receives note and session events from the service.
func WithEventSink(sink noteservice.EventSink) Option {
	return func(a *application) {
		a.sink = sink
	}
}
