package config

import (
	"fmt"
	"os"

	"github.com/luigisaetta/oraculum/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all Oraculum configuration.
type Config struct {
	Listen       string             `yaml:"listen"`
	Verbose      bool               `yaml:"verbose"`
	LLM          LLMConfig          `yaml:"llm"`
	Cache        CacheConfig        `yaml:"cache"`
	Conversation ConversationConfig `yaml:"conversation"`
	Agent        AgentConfig        `yaml:"agent"`
	Audit        models.AuditConfig `yaml:"audit"`
}

// LLMConfig defines the upstream model provider (OpenAI-compatible).
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embed_model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// CacheConfig controls the semantic SQL cache.
type CacheConfig struct {
	MaxSize int `yaml:"max_size"`
	// DistanceThreshold is the maximum cosine distance at which a cached
	// SQL is reused for a paraphrased request.
	DistanceThreshold float64 `yaml:"distance_threshold"`
}

// ConversationConfig controls per-conversation history.
type ConversationConfig struct {
	MaxMessages int `yaml:"max_messages"`
}

// AgentConfig selects and configures the SQL agent backend.
type AgentConfig struct {
	Type   string `yaml:"type"`
	DBPath string `yaml:"db_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			EmbedModel:  "text-embedding-3-small",
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		Cache: CacheConfig{
			MaxSize:           1000,
			DistanceThreshold: 0.05,
		},
		Conversation: ConversationConfig{
			MaxMessages: 10,
		},
		Agent: AgentConfig{
			Type:   "sqlite",
			DBPath: "oraculum.db",
		},
		Audit: models.AuditConfig{
			Enabled: false,
			DBPath:  "audit.db",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive, got %d", c.Cache.MaxSize)
	}
	if c.Cache.DistanceThreshold < 0 {
		return fmt.Errorf("cache.distance_threshold must not be negative, got %g", c.Cache.DistanceThreshold)
	}
	if c.Conversation.MaxMessages <= 0 {
		return fmt.Errorf("conversation.max_messages must be positive, got %d", c.Conversation.MaxMessages)
	}
	return nil
}
