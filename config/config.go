// Package config loads BlackIA's two-file TOML configuration: a system
// settings file pointing at the data directory, and a user config living
// inside it. Environment variables override both.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SystemConfig is the machine-level settings file
// (~/.config/blackia/settings.toml).
type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// BackendConfig selects and parameterizes the generation backend.
type BackendConfig struct {
	// Provider is one of "ollama", "openai-compat", "lmstudio", "mlx",
	// "vllm".
	Provider     string `toml:"provider"`
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
}

// GenerationConfig holds the default generation settings for new
// conversations.
type GenerationConfig struct {
	SystemPrompt    string  `toml:"system_prompt,omitempty"`
	Temperature     float64 `toml:"temperature"`
	MaxTokens       int     `toml:"max_tokens"`
	TopP            float64 `toml:"top_p"`
	IncludeFewShots bool    `toml:"include_few_shots"`
}

// WebSearchConfig configures the optional web search.
type WebSearchConfig struct {
	Enabled         bool   `toml:"enabled"`
	Provider        string `toml:"provider"`
	BaseURL         string `toml:"base_url,omitempty"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// CredentialsConfig selects how provider API keys are stored at rest.
type CredentialsConfig struct {
	// Encryption is "none" or "ssh_key".
	Encryption string `toml:"encryption"`
	// SSHKeyPath selects the key used for ssh_key encryption; empty means
	// the first discovered key under ~/.ssh.
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// MCPServerConfig declares one MCP tool server to launch at startup.
type MCPServerConfig struct {
	ID          string            `toml:"id"`
	Command     string            `toml:"command"`
	Args        []string          `toml:"args"`
	Env         map[string]string `toml:"env"`
	Permissions []string          `toml:"permissions"`
}

// UserConfig is the per-user config file (<data_directory>/config.toml).
type UserConfig struct {
	Backend      BackendConfig     `toml:"backend"`
	Generation   GenerationConfig  `toml:"generation"`
	WebSearch    WebSearchConfig   `toml:"web_search"`
	Credentials  CredentialsConfig `toml:"credentials"`
	ToolsEnabled bool              `toml:"tools_enabled"`
	MCPServers   []MCPServerConfig `toml:"mcp_server"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory string

	BackendProvider string
	BackendHost     string
	DefaultModel    string

	Generation   GenerationConfig
	WebSearch    WebSearchConfig
	Credentials  CredentialsConfig
	ToolsEnabled bool
	MCPServers   []MCPServerConfig
}

var Debug = false
var DebugLog *log.Logger

// DataDir returns the expanded data directory path.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("BLACKIA_HOST"); host != "" {
		c.BackendHost = host
	}
	if m := os.Getenv("BLACKIA_MODEL"); m != "" {
		c.DefaultModel = m
	}
	if p := os.Getenv("BLACKIA_PROVIDER"); p != "" {
		c.BackendProvider = p
	}
	if dataDir := os.Getenv("BLACKIA_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

// CheckDebug reports whether debug logging is requested.
func CheckDebug() bool {
	debug := os.Getenv("BLACKIA_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log in the data directory when BLACKIA_DEBUG
// is set.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600, debug output may contain message content.
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (BLACKIA_DEBUG=%s) ===", os.Getenv("BLACKIA_DEBUG"))
}

// Load resolves the configuration: system settings, then the user config in
// the data directory, then environment overrides. Missing files are created
// from templates.
func Load() (*Config, error) {
	cfg := defaultConfig()

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	cfg.DataDirectory = systemCfg.DataDirectory

	userCfg, err := LoadUserConfig(cfg.DataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.BackendProvider = userCfg.Backend.Provider
	cfg.BackendHost = userCfg.Backend.Host
	cfg.DefaultModel = userCfg.Backend.DefaultModel
	cfg.Generation = userCfg.Generation
	cfg.WebSearch = userCfg.WebSearch
	cfg.Credentials = userCfg.Credentials
	cfg.ToolsEnabled = userCfg.ToolsEnabled
	cfg.MCPServers = userCfg.MCPServers

	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		DataDirectory:   "~/.local/share/blackia",
		BackendProvider: "ollama",
		BackendHost:     "http://localhost:11434",
		DefaultModel:    "llama3.1:latest",
		Generation: GenerationConfig{
			Temperature:     0.7,
			MaxTokens:       4096,
			TopP:            0.9,
			IncludeFewShots: true,
		},
		WebSearch: WebSearchConfig{
			Provider:        "duckduckgo",
			CacheTTLMinutes: 60,
		},
		Credentials: CredentialsConfig{
			Encryption: string(EncryptionNone),
		},
	}
}
