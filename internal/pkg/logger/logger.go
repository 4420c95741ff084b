// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a production logger unless env is a dev environment,
// which gets the human-readable console encoder.
func New(env string) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if env == "dev" || env == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}
	return l, nil
}
