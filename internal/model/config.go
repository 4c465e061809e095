package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config holds the complete veracity configuration
type Config struct {
	Evidence    EvidenceConfig    `yaml:"evidence" mapstructure:"evidence"`
	Segmenter   SegmenterConfig   `yaml:"segmenter" mapstructure:"segmenter"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Entity      EntityConfig      `yaml:"entity" mapstructure:"entity"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// EvidenceConfig configures the knowledge-source lookup
type EvidenceConfig struct {
	Language          string        `yaml:"language" mapstructure:"language"`
	Endpoint          string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"` // Overrides https://{lang}.wikipedia.org/w/api.php
	Resolve           string        `yaml:"resolve" mapstructure:"resolve"`             // "search" or "title"
	MaxSentences      int           `yaml:"max_sentences" mapstructure:"max_sentences"` // 0 = whole extract
	IntroOnly         bool          `yaml:"intro_only" mapstructure:"intro_only"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries           int           `yaml:"retries" mapstructure:"retries"`
	BackoffMS         int           `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SegmenterConfig selects the sentence segmentation engine
type SegmenterConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "rule" or "http"
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
}

// ScoringConfig pairs a scoring strategy with the threshold calibrated for it
type ScoringConfig struct {
	Strategy  Strategy `yaml:"strategy" mapstructure:"strategy"`
	Threshold float64  `yaml:"threshold" mapstructure:"threshold"`
	Provider  string   `yaml:"provider" mapstructure:"provider"` // entailment: "http", "openai"; cosine: "openai", "ollama"
	Model     string   `yaml:"model,omitempty" mapstructure:"model"`
	Endpoint  string   `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	APIKey    string   `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout   int      `yaml:"timeout" mapstructure:"timeout"` // seconds
	Memoize   bool     `yaml:"memoize" mapstructure:"memoize"`
}

// EntityConfig configures the entity overlap check
type EntityConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Provider string `yaml:"provider" mapstructure:"provider"` // "heuristic" or "http"
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
}

// ConcurrencyConfig bounds per-claim parallelism
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// CacheConfig configures lookup caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig configures report output
type OutputConfig struct {
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
	JSONPath string `yaml:"json,omitempty" mapstructure:"json"`
	MDPath   string `yaml:"md,omitempty" mapstructure:"md"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr    string        `yaml:"addr" mapstructure:"addr"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "console" or "json"
}

// DefaultThreshold returns the threshold calibrated for a scoring strategy
func DefaultThreshold(s Strategy) float64 {
	if s == StrategyCosine {
		return 0.1
	}
	return 0.5
}

// DefaultConfig returns the default configuration (English encyclopedia, entailment scoring)
func DefaultConfig() *Config {
	return &Config{
		Evidence: EvidenceConfig{
			Language:          "en",
			Resolve:           "search",
			MaxSentences:      2,
			IntroOnly:         true,
			UserAgent:         "Veracity/0.1 (+https://github.com/ppiankov/veracity)",
			Timeout:           15 * time.Second,
			Retries:           3,
			BackoffMS:         500,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Segmenter: SegmenterConfig{
			Provider: "rule",
		},
		Scoring: ScoringConfig{
			Strategy:  StrategyEntailment,
			Threshold: DefaultThreshold(StrategyEntailment),
			Provider:  "http",
			Model:     "cross-encoder/nli-deberta-v3-base",
			Endpoint:  "http://localhost:8088/predict",
			Timeout:   30,
			Memoize:   true,
		},
		Entity: EntityConfig{
			Enabled:  false,
			Provider: "heuristic",
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			BatchWorkers: 2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Timeout: 2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "veracity-cache")
	}
	return filepath.Join(home, ".veracity", "cache")
}

// presets maps preset names to modifications of the default configuration
var presets = map[string]func(*Config){
	// Cross-encoder NLI over the first two sentences of an English summary
	"wiki-en-nli": func(c *Config) {},
	// Same as wiki-en-nli with a five-sentence snippet
	"wiki-en-nli-long": func(c *Config) {
		c.Evidence.MaxSentences = 5
	},
	// Spanish full article, embedding cosine similarity plus entity overlap
	"wiki-es-embed-entities": func(c *Config) {
		c.Evidence.Language = "es"
		c.Evidence.Resolve = "title"
		c.Evidence.MaxSentences = 0
		c.Evidence.IntroOnly = false
		c.Scoring.Strategy = StrategyCosine
		c.Scoring.Threshold = DefaultThreshold(StrategyCosine)
		c.Scoring.Provider = "openai"
		c.Scoring.Model = "text-embedding-3-small"
		c.Scoring.Endpoint = ""
		c.Entity.Enabled = true
	},
}

// Preset returns the default configuration modified by the named preset
func Preset(name string) (*Config, error) {
	apply, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg, nil
}

// PresetNames returns the known preset names in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if !c.Scoring.Strategy.Valid() {
		result = multierror.Append(result, fmt.Errorf("scoring.strategy: unknown strategy %q (supported: entailment, cosine)", c.Scoring.Strategy))
	} else {
		lo, hi := c.Scoring.Strategy.Range()
		if c.Scoring.Threshold < lo || c.Scoring.Threshold > hi {
			result = multierror.Append(result, fmt.Errorf("scoring.threshold: %.3f outside [%g, %g] for %s", c.Scoring.Threshold, lo, hi, c.Scoring.Strategy))
		}
	}
	if c.Scoring.Provider == "http" && c.Scoring.Endpoint == "" {
		result = multierror.Append(result, fmt.Errorf("scoring.endpoint: required for http provider"))
	}

	switch c.Evidence.Resolve {
	case "search", "title":
	default:
		result = multierror.Append(result, fmt.Errorf("evidence.resolve: unknown mode %q (supported: search, title)", c.Evidence.Resolve))
	}
	if c.Evidence.Language == "" && c.Evidence.Endpoint == "" {
		result = multierror.Append(result, fmt.Errorf("evidence.language: required when no endpoint is set"))
	}
	if c.Evidence.MaxSentences < 0 {
		result = multierror.Append(result, fmt.Errorf("evidence.max_sentences: must be >= 0, got %d", c.Evidence.MaxSentences))
	}
	if c.Evidence.Retries < 0 {
		result = multierror.Append(result, fmt.Errorf("evidence.retries: must be >= 0, got %d", c.Evidence.Retries))
	}

	switch c.Segmenter.Provider {
	case "rule":
	case "http":
		if c.Segmenter.Endpoint == "" {
			result = multierror.Append(result, fmt.Errorf("segmenter.endpoint: required for http provider"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("segmenter.provider: unknown provider %q (supported: rule, http)", c.Segmenter.Provider))
	}

	if c.Entity.Enabled {
		switch c.Entity.Provider {
		case "heuristic":
		case "http":
			if c.Entity.Endpoint == "" {
				result = multierror.Append(result, fmt.Errorf("entity.endpoint: required for http provider"))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("entity.provider: unknown provider %q (supported: heuristic, http)", c.Entity.Provider))
		}
	}

	if c.Concurrency.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("concurrency.workers: must be >= 1, got %d", c.Concurrency.Workers))
	}

	return result.ErrorOrNil()
}
