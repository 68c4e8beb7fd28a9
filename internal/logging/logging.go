// Package logging builds component-scoped loggers the way the original
// Python service names a logger per component (setup_logger, get_logger)
// — translated to logrus fields since Go has no global logger registry.
package logging

import (
	"io"
	"os"

	"github.com/mt-monitoring/alarmd/internal/config"
	"github.com/sirupsen/logrus"
)

// New builds the root logrus logger from LoggingConfig: level, output
// format, and an optional file sink layered under the console sink, the
// same FileHandler+StreamHandler pairing src/utils/logger.py sets up.
func New(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := io.Writer(os.Stderr)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	logger.SetOutput(out)

	return logger, nil
}

// For returns a logger scoped to one named component, mirroring
// get_logger(name) from the original's src/utils/logger.py.
func For(base *logrus.Logger, component string) *logrus.Entry {
	return base.WithField("component", component)
}
