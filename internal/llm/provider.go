// Package llm holds the model clients used for scoring: embedding encoders
// for cosine similarity and entailment models for claim/evidence pairs.
package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
)

// Embedder encodes texts into dense vectors, one per input, in input order
type Embedder interface {
	// Name returns the provider name
	Name() string

	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CrossEncoder scores claim/evidence pairs jointly. Each score is the
// probability that the evidence entails the claim, in [0,1].
type CrossEncoder interface {
	// Name returns the provider name
	Name() string

	Predict(ctx context.Context, pairs []Pair) ([]float64, error)
}

// Pair is one cross-encoder input. The claim goes first, as the model was
// queried with (claim, evidence) tuples.
type Pair struct {
	Claim    string
	Evidence string
}

// Config holds model client configuration
type Config struct {
	// Provider name: "openai", "ollama", "http"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI-compatible APIs
	APIKey string

	// BaseURL for custom endpoints (Ollama, self-hosted cross-encoder)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider: "http",
		Timeout:  30,
	}
}

// ConfigFromModel converts the scoring section of the configuration.
// Proxy settings are shared with the evidence client.
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:   cfg.Scoring.Provider,
		Model:      cfg.Scoring.Model,
		APIKey:     cfg.Scoring.APIKey,
		BaseURL:    cfg.Scoring.Endpoint,
		Timeout:    cfg.Scoring.Timeout,
		HTTPProxy:  cfg.Evidence.HTTPProxy,
		HTTPSProxy: cfg.Evidence.HTTPSProxy,
		NoProxy:    cfg.Evidence.NoProxy,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c Config) httpClient(fallback time.Duration) *http.Client {
	return &http.Client{
		Timeout:   c.timeout(fallback),
		Transport: util.NewTransport(c.HTTPProxy, c.HTTPSProxy, c.NoProxy),
	}
}
