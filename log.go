package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"golang.org/x/term"
)

// envConfig holds settings that only come from the environment.
type envConfig struct {
	Debug      bool   `env:"READALOUD_DEBUG"`
	LogFile    string `env:"READALOUD_LOG_FILE"`
	ConfigHome string `env:"READALOUD_CONFIG_HOME"`
	XDGConfig  string `env:"XDG_CONFIG_HOME"`
}

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "readaloud").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to get cache dir: %w", err)
	}
	return filepath.Join(dir, "readaloud.log"), nil
}

// setupLog writes logs to stderr, or to a file at debug level when
// READALOUD_DEBUG is set.
func setupLog() (func() error, error) {
	cfg, err := env.ParseAs[envConfig]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(!term.IsTerminal(int(os.Stderr.Fd())))
	if !cfg.Debug {
		return func() error { return nil }, nil
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile, err = getLogFilePath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create log dir: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetLevel(log.DebugLevel)
	debugLogging = true
	return f.Close, nil
}

// debugLogging pins the level to debug regardless of configuration.
var debugLogging bool

// applyLogLevel sets the level named by the log.level setting.
func applyLogLevel(name string) {
	if debugLogging {
		return
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		log.Warn("Unknown log level, using warn", "level", name)
		level = log.WarnLevel
	}
	log.SetLevel(level)
}
