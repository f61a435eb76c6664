// Package cli provides the Cobra-based command-line interface for report-scheduler.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/nghyane/opsramp-reports/internal/cli/env"
	"github.com/nghyane/opsramp-reports/internal/config"
	"github.com/nghyane/opsramp-reports/internal/logging"
	"github.com/nghyane/opsramp-reports/internal/util"
)

// BootstrapOptions carries the flag values that influence startup.
type BootstrapOptions struct {
	ConfigPath string
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
	Output   io.Writer
}

// BootstrapResult contains the result of bootstrapping a run.
type BootstrapResult struct {
	Config         *config.Config
	ConfigFilePath string
	Logger         *log.Logger
	closer         io.Closer
}

// Close flushes and closes the log file, if any.
func (r *BootstrapResult) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Bootstrap loads .env, the configuration file and the environment
// overrides, validates the result and builds the run logger. Nothing here
// talks to the network.
func Bootstrap(opts BootstrapOptions) (*BootstrapResult, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// Load environment variables from .env if present. Real environment wins.
	loadDotEnv(filepath.Join(wd, ".env"))

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	if resolved, errResolve := util.ExpandPath(configPath); errResolve == nil {
		configPath = resolved
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = configPath
		}
		return nil, err
	}

	if cfg.LogFile != "" {
		resolved, errResolve := util.ExpandPath(cfg.LogFile)
		if errResolve != nil {
			return nil, fmt.Errorf("failed to resolve log file: %w", errResolve)
		}
		cfg.LogFile = resolved
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Output: opts.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	return &BootstrapResult{
		Config:         cfg,
		ConfigFilePath: configPath,
		Logger:         logger,
		closer:         closer,
	}, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) bool {
	if !util.FileExists(path) {
		return false
	}
	if err := godotenv.Load(path); err != nil {
		log.WithError(err).Warnf("failed to load %s", path)
		return false
	}
	log.Debugf("loaded environment from %s", path)
	return true
}

// applyEnvOverrides applies environment variable overrides for container deployment.
func applyEnvOverrides(cfg *config.Config) {
	if level, ok := env.LookupEnv(env.Key("LOG_LEVEL")); ok {
		cfg.LogLevel = level
		log.Debugf("Log level overridden by env: %s", level)
	}

	if file, ok := env.LookupEnv(env.Key("LOG_FILE")); ok {
		cfg.LogFile = file
		log.Debugf("Log file overridden by env: %s", file)
	}

	if verify, ok := env.LookupEnvBool(env.Key("SSL_VERIFY")); ok {
		cfg.SSLVerify = verify
		log.Debugf("SSL verification overridden by env: %v", verify)
	}

	if retries, ok := env.LookupEnvInt(env.Key("MAX_RETRIES")); ok {
		cfg.HTTP.MaxRetries = retries
		log.Debugf("Max retries overridden by env: %d", retries)
	}
}
