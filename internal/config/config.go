// Package config loads the engine's on-disk configuration: agent roster,
// model bindings, delegation policy, and credential resolution, from YAML
// (with JSON5 override support and $include directives).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the root configuration for a linggen-agent process.
type Config struct {
	// WorkspaceRoot is the canonical directory path-taking tools must
	// operate under.
	WorkspaceRoot string `yaml:"workspace_root"`

	// MaxIters is the default per-run iteration cap (spec default 30).
	MaxIters int `yaml:"max_iters"`

	// MaxDepth is the default delegation depth cap (spec default 3).
	MaxDepth int `yaml:"max_depth"`

	// Agents is the named agent roster.
	Agents map[string]AgentConfig `yaml:"agents"`

	// Models maps a model id to its provider binding and inline credential.
	Models map[string]ModelConfig `yaml:"models"`

	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig configures one named agent.
type AgentConfig struct {
	RolePrompt      string   `yaml:"role_prompt"`
	Model           string   `yaml:"model"`
	Capabilities    []string `yaml:"capabilities"`
	MaxDepth        int      `yaml:"max_depth"`
	AllowedChildren []string `yaml:"allowed_children"`
}

// ModelConfig binds a model id to a provider and optional inline credential.
type ModelConfig struct {
	Provider string `yaml:"provider"` // anthropic | openai | ollama
	Name     string `yaml:"name"`     // provider-native model name
	APIKey   string `yaml:"api_key"`  // inline credential, highest-precedence source
	BaseURL  string `yaml:"base_url"` // non-default endpoint, e.g. a local Ollama server's OpenAI-compatible URL
}

// LoggingConfig configures the ambient logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// Load reads path (resolving $include directives and expanding env vars),
// decodes it into a Config, and applies defaults.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MaxIters <= 0 {
		cfg.MaxIters = 30
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = "."
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	for id, agent := range cfg.Agents {
		if agent.MaxDepth <= 0 {
			agent.MaxDepth = cfg.MaxDepth
			cfg.Agents[id] = agent
		}
	}
}

// CredentialForModel resolves an API key for model id m following the
// precedence order: (1) inline config value, (2) credentials.json, (3)
// LINGGEN_API_KEY_<M_UPPER_SNAKE> environment variable.
func (c *Config) CredentialForModel(m string, credentialsJSON map[string]string) (string, error) {
	if model, ok := c.Models[m]; ok && model.APIKey != "" {
		return model.APIKey, nil
	}
	if credentialsJSON != nil {
		if key, ok := credentialsJSON[m]; ok && key != "" {
			return key, nil
		}
	}
	envKey := "LINGGEN_API_KEY_" + envSuffix(m)
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no credential found for model %q (checked inline config, credentials.json, %s)", m, envKey)
}

func envSuffix(m string) string {
	return strings.ToUpper(strings.ReplaceAll(m, "-", "_"))
}

// EncodeProjectPath converts an absolute project path into the directory
// name used under the user-home .linggen/projects/ tree, e.g. "/a/b/c" ->
// "-a-b-c".
func EncodeProjectPath(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	return strings.ReplaceAll(clean, "/", "-")
}
