// Package logger builds the structured logger used across a session
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Config contains logging settings
type Config struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

// New returns a logger configured by cfg. Invalid settings fall back
// to info level JSON output on stdout, with a warning.
func New(cfg Config) *logrus.Logger {
	log := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', using 'info'", cfg.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Set log format
	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		log.Warnf("Invalid log format '%s', using 'json'", cfg.Format)
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	// Set output
	switch cfg.Output {
	case "stdout", "":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		// Assume file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Warnf("Failed to open log file '%s', using stdout", cfg.Output)
			log.SetOutput(os.Stdout)
		} else {
			log.SetOutput(file)
		}
	}

	return log
}

// Discard returns a logger which drops every entry
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
