// Package config loads and validates the briefbot JSON configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for briefbot.
type Config struct {
	General      GeneralConfig             `json:"general"`
	Providers    map[string]ProviderConfig `json:"providers"`
	Search       SearchConfig              `json:"search"`
	Conversation ConversationConfig        `json:"conversation"`
	Storage      StorageConfig             `json:"storage"`
	History      HistoryConfig             `json:"history"`
	Security     SecurityConfig            `json:"security"`
	Metrics      MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel        string `json:"logLevel"`
	LogFile         string `json:"logFile,omitempty"` // optional log file path
	DefaultProvider string `json:"defaultProvider"`
}

type ProviderConfig struct {
	Enabled      bool    `json:"enabled"`
	DefaultModel string  `json:"defaultModel,omitempty"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens,omitempty"` // 0 = provider default
	Timeout      int     `json:"timeout"`             // seconds
	MaxRetries   int     `json:"maxRetries"`
}

type SearchConfig struct {
	Provider   string `json:"provider"`
	MaxResults int    `json:"maxResults"`
}

type ConversationConfig struct {
	MaxMessages   int `json:"maxMessages"`
	ContextWindow int `json:"contextWindow"`
}

type StorageConfig struct {
	BaseDir string `json:"baseDir"`
}

type HistoryConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
}

type SecurityConfig struct {
	AuditLog     bool   `json:"auditLog"`
	SignatureDir string `json:"signatureDir,omitempty"` // extra injection signature packs
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	Port     int    `json:"port"`
}

// DefaultConfigDir returns the default config directory (~/.briefbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".briefbot"
	}
	return filepath.Join(home, ".briefbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a config file, expands environment variables and paths,
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Storage.BaseDir = ExpandPath(cfg.Storage.BaseDir)
	cfg.History.DBPath = ExpandPath(cfg.History.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Security.SignatureDir = ExpandPath(cfg.Security.SignatureDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is
// unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.DefaultProvider == "" {
		errs = append(errs, "general.defaultProvider is required")
	}
	if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
		errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
	}

	for name, pc := range cfg.Providers {
		if pc.Temperature < 0 || pc.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("providers.%s.temperature must be between 0 and 2", name))
		}
		if pc.MaxTokens < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.maxTokens must be >= 0", name))
		}
		if pc.Timeout < 1 {
			errs = append(errs, fmt.Sprintf("providers.%s.timeout must be >= 1", name))
		}
		if pc.MaxRetries < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.maxRetries must be >= 0", name))
		}
	}

	if cfg.Search.MaxResults < 1 || cfg.Search.MaxResults > 20 {
		errs = append(errs, "search.maxResults must be between 1 and 20")
	}
	if cfg.Conversation.MaxMessages < 1 {
		errs = append(errs, "conversation.maxMessages must be >= 1")
	}
	if cfg.Conversation.ContextWindow < 1 {
		errs = append(errs, "conversation.contextWindow must be >= 1")
	}
	if cfg.History.Enabled && cfg.History.RetentionDays < 0 {
		errs = append(errs, "history.retentionDays must be >= 0")
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
