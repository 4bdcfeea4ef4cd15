// SPDX-License-Identifier: MIT

package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the command's logger from l. An empty level means info;
// format is json (production encoder) or console (development encoder).
func NewLogger(l Logging) (*zap.Logger, error) {
	var cfg zap.Config
	switch l.Format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalidRun, l.Format)
	}

	if l.Level != "" {
		level, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
		}
		cfg.Level = level
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
