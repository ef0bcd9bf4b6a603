// Package config builds process configuration from the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultPort is the port the server listens on and the client dials when no
// --port flag is given.
const DefaultPort = 12300

// Environment variables consumed by the logging collaborator.
const (
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogEnabled  = "LOG_ENABLED"
	EnvLogFilepath = "LOG_FILEPATH"
)

// NewLogger builds a logrus logger from the environment: LOG_LEVEL selects
// the level (DEBUG, INFO, WARNING, ERROR, CRITICAL; default INFO),
// LOG_ENABLED=false silences output entirely and LOG_FILEPATH appends log
// lines to a file instead of stderr.
func NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "02-01-2006 15:04:05",
	})

	level, err := parseLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	enabled, err := logEnabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		logger.SetOutput(io.Discard)
		return logger, nil
	}

	if path := os.Getenv(EnvLogFilepath); path != "" {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open the log file: %w", err)
		}
		logger.SetOutput(file)
	}

	return logger, nil
}

func parseLevel(value string) (logrus.Level, error) {
	if value == "" {
		return logrus.InfoLevel, nil
	}
	switch strings.ToUpper(value) {
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "INFO":
		return logrus.InfoLevel, nil
	case "WARNING":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	case "CRITICAL":
		return logrus.FatalLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", value)
	}
}

func logEnabled() (bool, error) {
	value := os.Getenv(EnvLogEnabled)
	if value == "" {
		return true, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q", EnvLogEnabled, value)
	}
	return enabled, nil
}
