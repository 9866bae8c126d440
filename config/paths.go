package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetConfigDir returns the system config directory (~/.config/blackia).
func GetConfigDir() (string, error) {
	home, err := GetHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "blackia"), nil
}

// GetSettingsFilePath returns the path to settings.toml.
func GetSettingsFilePath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "settings.toml"), nil
}

// GetDefaultDataDir returns the default data directory path, unexpanded.
func GetDefaultDataDir() string {
	return "~/.local/share/blackia"
}

// GetHomeDir returns the current user's home directory.
func GetHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return home, nil
}

// ExpandPath expands a leading ~ to the user's home directory. Paths that
// cannot be expanded are returned unchanged.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := GetHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// EnsureDir creates the directory with 0700 if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// EnsureDataDirPermissions tightens the data directory to 0700. The data
// directory holds conversation content and credentials.
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat data directory: %w", err)
	}
	if info.Mode().Perm() != 0700 {
		if err := os.Chmod(dataDir, 0700); err != nil {
			return fmt.Errorf("failed to chmod data directory: %w", err)
		}
	}
	return nil
}
