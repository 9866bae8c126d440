package config

// DefaultSystemConfig returns the default system settings.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: GetDefaultDataDir(),
	}
}

// DefaultUserConfig returns the default user config.
func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Backend: BackendConfig{
			Provider:     "ollama",
			Host:         "http://localhost:11434",
			DefaultModel: "llama3.1:latest",
		},
		Generation: GenerationConfig{
			Temperature:     0.7,
			MaxTokens:       4096,
			TopP:            0.9,
			IncludeFewShots: true,
		},
		WebSearch: WebSearchConfig{
			Enabled:         false,
			Provider:        "duckduckgo",
			CacheTTLMinutes: 60,
		},
		Credentials: CredentialsConfig{
			Encryption: string(EncryptionNone),
		},
		ToolsEnabled: false,
	}
}

// GenerateSystemConfigTemplate returns the commented settings.toml contents
// written on first run.
func GenerateSystemConfigTemplate() string {
	return `# BlackIA system settings
#
# data_directory is where conversations, personas, attachments and the user
# config live. Supports ~ expansion.

data_directory = "~/.local/share/blackia"
`
}

// GenerateUserConfigTemplate returns the commented config.toml contents
// written on first run.
func GenerateUserConfigTemplate() string {
	return `# BlackIA user configuration
#
# This file lives in your data directory and holds backend and generation
# preferences. Environment variables BLACKIA_PROVIDER, BLACKIA_HOST and
# BLACKIA_MODEL override the backend section.

[backend]
# provider: "ollama", "openai-compat", "lmstudio", "mlx" or "vllm"
provider = "ollama"
host = "http://localhost:11434"
default_model = "llama3.1:latest"

[generation]
temperature = 0.7
max_tokens = 4096
top_p = 0.9
include_few_shots = true

[web_search]
enabled = false
# provider: "duckduckgo", "brave" or "custom"
provider = "duckduckgo"
cache_ttl_minutes = 60

[credentials]
# encryption: "none" stores API keys in plain JSON; "ssh_key" encrypts them
# with AES-256-GCM keyed from your SSH key. With ssh_key, ssh_key_path picks
# the key (empty autodetects under ~/.ssh); passphrase-protected keys read
# the passphrase from BLACKIA_SSH_PASSPHRASE.
encryption = "none"
# ssh_key_path = "~/.ssh/id_ed25519"

# Enable MCP tool exposure to tool-capable models.
tools_enabled = false

# MCP tool servers launched at startup. Tools from a server stay disabled
# until its permissions are granted with /grant.
#
# [[mcp_server]]
# id = "files"
# command = "mcp-server-filesystem"
# args = ["/home/me/docs"]
# permissions = ["fs:read"]
`
}
