// Package logging builds the process-wide zap logger.
package logging

import "go.uber.org/zap"

// New returns a configured logger. Debug mode switches to the development
// encoder with DPanic enabled and human-readable timestamps.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
