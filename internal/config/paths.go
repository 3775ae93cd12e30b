package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// HomeEnv overrides the opsclaw home directory.
	HomeEnv = "OPSCLAW_HOME"

	ConfigFilePath  = "config.toml"
	HistoryFilePath = "repl_history"
)

// homeDir returns the opsclaw home directory.
// Uses OPSCLAW_HOME if set, otherwise defaults to ~/.opsclaw.
func homeDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return defaultHomePath(home), nil
}

func homeConfigPath(home string) string {
	return filepath.Join(home, ConfigFilePath)
}

func defaultHomePath(home string) string {
	return filepath.Join(home, ".opsclaw")
}

func (c *Config) ConfigPath() string {
	return homeConfigPath(c.HomeDir)
}

// HistoryPath is where the REPL keeps its line history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.HomeDir, HistoryFilePath)
}
