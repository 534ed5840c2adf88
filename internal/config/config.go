package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "apisurface.yaml"

type Config struct {
	Project struct {
		Name        string   `yaml:"name"`
		Root        string   `yaml:"root"`
		Sources     []string `yaml:"sources"`
		SearchPaths []string `yaml:"search_paths"`
		// Nullable overrides the project's <Nullable> property when set.
		Nullable *bool `yaml:"nullable"`
	} `yaml:"project"`
	Files struct {
		Shipped   string `yaml:"shipped"`
		Unshipped string `yaml:"unshipped"`
	} `yaml:"files"`
	Extractor struct {
		Kind string `yaml:"kind"` // csharp or dump
		Dump string `yaml:"dump"`
	} `yaml:"extractor"`
	History struct {
		DB string `yaml:"db"`
	} `yaml:"history"`
	Watch struct {
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"watch"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	if c.Files.Shipped == "" {
		c.Files.Shipped = "PublicAPI/PublicAPI.Shipped.txt"
	}
	if c.Files.Unshipped == "" {
		c.Files.Unshipped = "PublicAPI/PublicAPI.Unshipped.txt"
	}
	if c.Extractor.Kind == "" {
		c.Extractor.Kind = "csharp"
	}
	if c.History.DB == "" {
		c.History.DB = "apisurface.db"
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 300 * time.Millisecond
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Target is what the extractor reads: the dump file for the dump
// extractor, the project root otherwise.
func (c *Config) Target() string {
	if strings.EqualFold(c.Extractor.Kind, "dump") && c.Extractor.Dump != "" {
		return c.Extractor.Dump
	}
	return c.Project.Root
}

// LoadConfig reads path, falling back to defaults when it does not exist.
// Values from the environment (and a .env file) take precedence.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// 3. Override with Environment Variables if present
	if v := os.Getenv("APISURFACE_SHIPPED"); v != "" {
		cfg.Files.Shipped = v
	}
	if v := os.Getenv("APISURFACE_UNSHIPPED"); v != "" {
		cfg.Files.Unshipped = v
	}
	if v := os.Getenv("APISURFACE_EXTRACTOR"); v != "" {
		cfg.Extractor.Kind = v
	}
	if v := os.Getenv("APISURFACE_DB"); v != "" {
		cfg.History.DB = v
	}
	if v := os.Getenv("APISURFACE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}
