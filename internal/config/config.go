package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const (
	minLookbackDays     = 30
	maxLookbackDays     = 365
	defaultLookbackDays = 180
)

type Config struct {
	GitHub  GitHub  `yaml:"github"`
	Engine  Engine  `yaml:"engine"`
	LLM     LLM     `yaml:"llm"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type GitHub struct {
	Repositories []string `yaml:"repositories"`
	TokenEnv     string   `yaml:"token_env"`
}

type Engine struct {
	LookbackDays    int      `yaml:"lookback_days"`
	LabelFilters    []string `yaml:"label_filters"`
	PublishComments bool     `yaml:"publish_comments"`
}

type LLM struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for riskradar.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "riskradar")
}

// DataDir returns the XDG data directory for riskradar.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "riskradar")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/riskradar/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'riskradar init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults and normalizing
// the engine settings.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		GitHub: GitHub{
			TokenEnv: "GITHUB_TOKEN",
		},
		Engine: Engine{
			LookbackDays:    defaultLookbackDays,
			PublishComments: true,
		},
		LLM: LLM{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   256,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Engine.LookbackDays < minLookbackDays {
		cfg.Engine.LookbackDays = minLookbackDays
	}
	if cfg.Engine.LookbackDays > maxLookbackDays {
		cfg.Engine.LookbackDays = maxLookbackDays
	}
	cfg.Engine.LabelFilters = normalizeFilters(cfg.Engine.LabelFilters)
	for i, repo := range cfg.GitHub.Repositories {
		cfg.GitHub.Repositories[i] = strings.ToLower(strings.TrimSpace(repo))
	}

	return cfg, nil
}

func normalizeFilters(filters []string) []string {
	var out []string
	for _, f := range filters {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Token reads the GitHub token from the configured environment variable.
// Empty means unauthenticated access with the default rate limits.
func (c *Config) Token() string {
	return os.Getenv(c.GitHub.TokenEnv)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
