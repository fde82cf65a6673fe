// Package logging builds the application logger.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger at debug level for development and a JSON
// logger at info level for every other environment.
func New(environment string, w io.Writer) zerolog.Logger {
	if environment == "development" {
		console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		return zerolog.New(console).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}

	return zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

// MaskKey keeps only the first characters of a credential for logging
func MaskKey(key string) string {
	if key == "" {
		return "NOT CONFIGURED"
	}
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "..."
}
