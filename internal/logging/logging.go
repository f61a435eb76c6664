// Package logging builds the logrus loggers used by the scheduler.
//
// Components never look loggers up by name: the CLI builds one logger per
// run with New and hands each component a *logrus.Entry derived from it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05"

// Options controls a run logger.
type Options struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR (case-insensitive).
	Level string

	// File, when non-empty, receives a copy of the output and is rotated.
	File string

	// Output defaults to os.Stdout.
	Output io.Writer
}

// SetupBaseLogger configures the standard logrus logger used before the
// run configuration is known.
func SetupBaseLogger() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(newFormatter())
	log.SetLevel(log.InfoLevel)
}

// New builds an independent logger. The returned closer flushes and closes
// the log file; it is a no-op when no file is configured.
func New(opts Options) (*log.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
		}
		out = io.MultiWriter(out, rotator)
		closer = rotator
	}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(newFormatter())
	logger.SetLevel(level)
	return logger, closer, nil
}

// ForClient returns the entry every component of a run logs through.
func ForClient(logger *log.Logger, clientName string) *log.Entry {
	return logger.WithField("client", clientName)
}

// ParseLevel maps the scheduler level names onto logrus levels.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return log.DebugLevel, nil
	case "", "INFO":
		return log.InfoLevel, nil
	case "WARNING", "WARN":
		return log.WarnLevel, nil
	case "ERROR":
		return log.ErrorLevel, nil
	case "CRITICAL", "FATAL":
		return log.FatalLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func newFormatter() log.Formatter {
	return &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
		DisableColors:   true,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
