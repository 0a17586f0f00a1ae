package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type CorpusConfig struct {
	// URL is a git remote to clone/pull. Path is a plain local directory.
	// Exactly one of the two must be set.
	URL        string   `yaml:"url"`
	Path       string   `yaml:"path"`
	Branch     string   `yaml:"branch,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`
}

type ChunkerConfig struct {
	Window   int    `yaml:"window" validate:"gt=0"`
	Overlap  int    `yaml:"overlap" validate:"gte=0,ltfield=Window"`
	Encoding string `yaml:"encoding,omitempty"`
}

// ServiceConfig describes one remote endpoint (embedding or completion).
type ServiceConfig struct {
	Provider string        `yaml:"provider" validate:"required"`
	APIKey   string        `yaml:"api_key,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Model    string        `yaml:"model" validate:"required"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type IndexConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=exact annoy"`
	Dimension int    `yaml:"dimension,omitempty"`
	Trees     int    `yaml:"trees,omitempty"` // annoy only
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"gt=0"`
}

type GeneratorConfig struct {
	ContextBudget int    `yaml:"context_budget" validate:"gt=0"`
	Encoding      string `yaml:"encoding,omitempty"`
}

type RebuildConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Watch    bool          `yaml:"watch,omitempty"`
	Workers  int           `yaml:"workers" validate:"gt=0"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	WorkDir   string          `yaml:"work_dir" validate:"required"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding ServiceConfig   `yaml:"embedding"`
	LLM       ServiceConfig   `yaml:"llm"`
	Retry     RetryConfig     `yaml:"retry"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Generator GeneratorConfig `yaml:"generator"`
	Rebuild   RebuildConfig   `yaml:"rebuild"`
	Server    ServerConfig    `yaml:"server"`
}

func DefaultConfig() *Config {
	return &Config{
		WorkDir: "./workdir",
		Corpus: CorpusConfig{
			Extensions: []string{".md", ".txt"},
		},
		Chunker: ChunkerConfig{
			Window:   512,
			Overlap:  64,
			Encoding: "cl100k_base",
		},
		Embedding: ServiceConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
			Timeout:  30 * time.Second,
		},
		LLM: ServiceConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
		},
		Index: IndexConfig{
			Backend: "exact",
			Trees:   10,
		},
		Retrieval: RetrievalConfig{TopK: 5},
		Generator: GeneratorConfig{
			ContextBudget: 3000,
			Encoding:      "cl100k_base",
		},
		Rebuild: RebuildConfig{
			Interval: time.Hour,
			Workers:  4,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error; validation still applies to the resulting config.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Credentials and the corpus location come from the environment when set,
// so secrets can stay out of the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPOQA_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("REPO_URL"); v != "" {
		cfg.Corpus.URL = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
}

// Validate fails fast with a message naming the offending field.
func (c *Config) Validate() error {
	if c.Corpus.URL == "" && c.Corpus.Path == "" {
		return fmt.Errorf("config: corpus needs either url or path")
	}
	if c.Corpus.URL != "" && c.Corpus.Path != "" {
		return fmt.Errorf("config: corpus url and path are mutually exclusive")
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config: field %s failed %q validation", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
