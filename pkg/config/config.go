// Package config loads the service configuration.
//
// Values are resolved in this order, later sources winning: built-in
// defaults, the YAML file, environment variables, command-line flags (applied
// by the caller after Load).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/medisimple/pkg/logging"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	LLM      LLMConfig      `yaml:"llm" json:"llm"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Dialogue DialogueConfig `yaml:"dialogue" json:"dialogue"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Prompts  PromptsConfig  `yaml:"prompts" json:"prompts"`
	Tasks    TasksConfig    `yaml:"tasks" json:"tasks"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LLMConfig configures the OpenAI-compatible provider.
type LLMConfig struct {
	APIKey      string   `yaml:"api_key" json:"api_key"`
	BaseURL     string   `yaml:"base_url" json:"base_url"`
	Model       string   `yaml:"model" json:"model"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// BrowserConfig configures the automation driver.
type BrowserConfig struct {
	Headless bool `yaml:"headless" json:"headless"`

	// SearchURL is the reference site the retriever searches.
	SearchURL string `yaml:"search_url" json:"search_url"`

	// AllowedHosts are glob patterns a connect URL's host must match.
	// Empty allows every host.
	AllowedHosts []string `yaml:"allowed_hosts" json:"allowed_hosts"`

	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	StepTimeout       time.Duration `yaml:"step_timeout" json:"step_timeout"`
}

// DialogueConfig holds the limits of the dialogue pipeline.
type DialogueConfig struct {
	MaxQueryLength   int `yaml:"max_query_length" json:"max_query_length"`
	ArticleCharCap   int `yaml:"article_char_cap" json:"article_char_cap"`
	MinContentLength int `yaml:"min_content_length" json:"min_content_length"`
	HistoryWindow    int `yaml:"history_window" json:"history_window"`
	FollowUpWindow   int `yaml:"followup_window" json:"followup_window"`
	SimplifyCharCap  int `yaml:"simplify_char_cap" json:"simplify_char_cap"`
	HistoryPageLimit int `yaml:"history_page_limit" json:"history_page_limit"`
}

// StorageConfig configures the history database.
type StorageConfig struct {
	Path string `yaml:"path" json:"path"`
}

// PromptsConfig points at an optional prompt template file.
type PromptsConfig struct {
	File string `yaml:"file" json:"file"`
}

// TasksConfig points at the saved task file.
type TasksConfig struct {
	File string `yaml:"file" json:"file"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Dir     string `yaml:"dir" json:"dir"`
	Console bool   `yaml:"console" json:"console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"http://localhost:5173"},
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			APIKey:  "ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "granite3.1-dense:8b",
		},
		Browser: BrowserConfig{
			Headless:          false,
			SearchURL:         "https://www.wikipedia.org",
			NavigationTimeout: 15 * time.Second,
			StepTimeout:       5 * time.Second,
		},
		Dialogue: DialogueConfig{
			MaxQueryLength:   500,
			ArticleCharCap:   2500,
			MinContentLength: 100,
			HistoryWindow:    6,
			FollowUpWindow:   4,
			SimplifyCharCap:  4000,
			HistoryPageLimit: 100,
		},
		Storage: StorageConfig{Path: "conversations.db"},
		Tasks:   TasksConfig{File: "tasks.yaml"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path skips the file; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MEDISIMPLE_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MEDISIMPLE_DB"); v != "" {
		c.Storage.Path = v
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if c.Browser.SearchURL == "" {
		return errors.New("browser.search_url is required")
	}

	limits := map[string]int{
		"dialogue.max_query_length":   c.Dialogue.MaxQueryLength,
		"dialogue.article_char_cap":   c.Dialogue.ArticleCharCap,
		"dialogue.min_content_length": c.Dialogue.MinContentLength,
		"dialogue.history_window":     c.Dialogue.HistoryWindow,
		"dialogue.followup_window":    c.Dialogue.FollowUpWindow,
		"dialogue.simplify_char_cap":  c.Dialogue.SimplifyCharCap,
		"dialogue.history_page_limit": c.Dialogue.HistoryPageLimit,
	}
	for name, v := range limits {
		if v <= 0 {
			return errors.Errorf("%s must be positive, got %d", name, v)
		}
	}

	if c.Browser.NavigationTimeout <= 0 || c.Browser.StepTimeout <= 0 {
		return errors.New("browser timeouts must be positive")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}

	for _, pattern := range c.Browser.AllowedHosts {
		if _, err := glob.Compile(pattern, '.'); err != nil {
			return errors.Wrapf(err, "invalid browser.allowed_hosts pattern %q", pattern)
		}
	}

	return nil
}
