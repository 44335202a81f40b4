package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "STORY_PIPELINE_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	grokAPIKeyEnv  = "GROK_API_KEY"
	grokModelEnv   = "GROK_MODEL"
	cmsAPIKeyEnv   = "CMS_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Grok       GrokConfig       `yaml:"grok"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	CMS        CMSConfig        `yaml:"cms"`
	Prompts    []PromptConfig   `yaml:"prompts"`
}

// LoggingConfig controls the console logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN keeps
// the pipeline on the in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// GrokConfig defines how to contact the Grok API.
type GrokConfig struct {
	Endpoint       string `yaml:"endpoint"`
	SearchEndpoint string `yaml:"searchEndpoint"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"apiKey"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// EnrichmentConfig bounds the per-URL metadata fetches.
type EnrichmentConfig struct {
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// CMSConfig wires the downstream publish target. An empty endpoint keeps the
// publisher in stub mode.
type CMSConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// PromptConfig seeds one prompt-library entry at startup. Routing fields are
// only meaningful on discovery prompts.
type PromptConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Text        string `yaml:"text"`
	Description string `yaml:"description"`
	Active      bool   `yaml:"active"`

	Opportunity  string `yaml:"opportunity"`
	Region       string `yaml:"region"`
	Publications string `yaml:"publications"`
	Topic        string `yaml:"topic"`
	Context      string `yaml:"context"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(grokAPIKeyEnv); v != "" {
		c.Grok.APIKey = v
	}

	if v := os.Getenv(grokModelEnv); v != "" {
		c.Grok.Model = v
	}

	if v := os.Getenv(cmsAPIKeyEnv); v != "" {
		c.CMS.APIKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Grok.Endpoint != "" {
		base.Grok.Endpoint = override.Grok.Endpoint
	}
	if override.Grok.SearchEndpoint != "" {
		base.Grok.SearchEndpoint = override.Grok.SearchEndpoint
	}
	if override.Grok.Model != "" {
		base.Grok.Model = override.Grok.Model
	}
	if override.Grok.APIKey != "" {
		base.Grok.APIKey = override.Grok.APIKey
	}
	if override.Grok.TimeoutSeconds > 0 {
		base.Grok.TimeoutSeconds = override.Grok.TimeoutSeconds
	}

	if override.Enrichment.TimeoutSeconds > 0 {
		base.Enrichment = override.Enrichment
	}

	if override.CMS.Endpoint != "" {
		base.CMS.Endpoint = override.CMS.Endpoint
	}
	if override.CMS.APIKey != "" {
		base.CMS.APIKey = override.CMS.APIKey
	}

	if len(override.Prompts) > 0 {
		base.Prompts = override.Prompts
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Grok: GrokConfig{
			Endpoint:       "https://api.x.ai/v1/chat/completions",
			SearchEndpoint: "https://api.x.ai/v1/responses",
			Model:          "grok-3-fast",
			TimeoutSeconds: 60,
		},
		Enrichment: EnrichmentConfig{TimeoutSeconds: 10},
		Prompts: []PromptConfig{
			{
				Name:   "default-discovery",
				Type:   "discovery",
				Text:   "Find newsworthy stories from the last 48 hours that fit the routing context below.",
				Active: true,
			},
		},
	}
}
