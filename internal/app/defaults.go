package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// init loads environment variables from a .env file during package
// initialization. godotenv.Load does not override already-set variables,
// preserving OS env > .env precedence.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DOCVAULT_CONFIG_PATH: config file location (default: ~/.config/docvault.toml)
//   - DOCVAULT_HOME: base directory for docvault data (default: ~/.local/share/docvault)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"data_dir":    filepath.Join(baseDir, "data"),
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking DOCVAULT_CONFIG_PATH
// first, then falling back to the default ~/.config/docvault.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("DOCVAULT_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "docvault.toml"), nil
}

// getBaseDir returns the base directory for docvault data, checking
// DOCVAULT_HOME first, then falling back to the XDG default ~/.local/share/docvault.
func getBaseDir() (string, error) {
	if path := os.Getenv("DOCVAULT_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "docvault"), nil
}
