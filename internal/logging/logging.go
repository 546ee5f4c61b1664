package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	level            = zerolog.InfoLevel
)

// Setup configures the shared writer and level. Call once from the root command.
func Setup(debug bool, jsonFormat bool) {
	mu.Lock()
	defer mu.Unlock()
	if debug {
		level = zerolog.DebugLevel
	} else {
		level = zerolog.InfoLevel
	}
	if jsonFormat {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
}

// SetOutput redirects all loggers created afterwards. Used by tests and the
// service wrapper.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// New returns a logger tagged with the component name.
func New(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return zerolog.New(output).Level(level).With().Timestamp().Str("component", component).Logger()
}
