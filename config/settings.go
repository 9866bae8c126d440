package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LoadSystemConfig reads the system settings file, creating a default one if
// it does not exist.
func LoadSystemConfig() (*SystemConfig, error) {
	settingsPath, err := GetSettingsFilePath()
	if err != nil {
		return nil, err
	}

	if !FileExists(settingsPath) {
		if err := CreateDefaultSystemConfig(settingsPath); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	var cfg SystemConfig
	if _, err := toml.DecodeFile(settingsPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", settingsPath, err)
	}

	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDir()
	}

	return &cfg, nil
}

// SaveSystemConfig writes the system settings file.
func SaveSystemConfig(cfg *SystemConfig) error {
	settingsPath, err := GetSettingsFilePath()
	if err != nil {
		return err
	}

	if err := EnsureDir(filepath.Dir(settingsPath)); err != nil {
		return err
	}

	f, err := os.OpenFile(settingsPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", settingsPath, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return nil
}

// LoadUserConfig reads the user config from the data directory, creating a
// default one if it does not exist.
func LoadUserConfig(dataDir string) (*UserConfig, error) {
	configPath := filepath.Join(dataDir, "config.toml")

	if !FileExists(configPath) {
		if err := CreateDefaultUserConfig(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	cfg := DefaultUserConfig()
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveUserConfig writes the user config to the data directory.
func SaveUserConfig(dataDir string, cfg *UserConfig) error {
	configPath := filepath.Join(dataDir, "config.toml")

	if err := EnsureDir(dataDir); err != nil {
		return err
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", configPath, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// CreateDefaultSystemConfig writes the commented settings template.
func CreateDefaultSystemConfig(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(GenerateSystemConfigTemplate()), 0600)
}

// CreateDefaultUserConfig writes the commented config template.
func CreateDefaultUserConfig(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(GenerateUserConfigTemplate()), 0600)
}
