package logging

import (
	"fmt"
	"os"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger from the log section.
func Setup(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return nil
}

// Component returns a logger tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
