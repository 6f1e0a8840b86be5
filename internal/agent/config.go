package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ContextConfig bounds the context document.
type ContextConfig struct {
	MaxBytes  int `yaml:"max_bytes"`
	Retention int `yaml:"retention"`
}

// LedgerConfig tunes request deduplication.
type LedgerConfig struct {
	MaxAttempts         int     `yaml:"max_attempts"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// Config describes one bot.
type Config struct {
	Name    string        `yaml:"name"`
	Role    string        `yaml:"role"`
	Model   string        `yaml:"model"`
	Context ContextConfig `yaml:"context"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Name:  "bot",
		Role:  "general assistant",
		Model: "gemini-2.5-flash",
		Context: ContextConfig{
			MaxBytes:  16 * 1024,
			Retention: 5,
		},
		Ledger: LedgerConfig{
			MaxAttempts:         3,
			SimilarityThreshold: 0.5,
		},
	}
}

// LoadConfig reads a YAML config file, layering it over the defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Role == "" {
		cfg.Role = def.Role
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Context.MaxBytes <= 0 {
		cfg.Context.MaxBytes = def.Context.MaxBytes
	}
	if cfg.Context.Retention <= 0 {
		cfg.Context.Retention = def.Context.Retention
	}
	if cfg.Ledger.MaxAttempts <= 0 {
		cfg.Ledger.MaxAttempts = def.Ledger.MaxAttempts
	}
	if cfg.Ledger.SimilarityThreshold <= 0 {
		cfg.Ledger.SimilarityThreshold = def.Ledger.SimilarityThreshold
	}
	return cfg
}

// SystemInstruction renders the instruction sent with every generation.
func (c Config) SystemInstruction() string {
	return fmt.Sprintf("You are %s, a %s.", c.Name, c.Role)
}
