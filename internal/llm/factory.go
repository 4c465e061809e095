package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// NewEmbedder creates the embedding client for cosine scoring
func NewEmbedder(config Config) (Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		e, err := NewOpenAIEmbedder(config)
		if err != nil {
			return nil, err
		}
		return e, nil

	case "ollama":
		e, err := NewOllamaEmbedder(config)
		if err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// NewCrossEncoder creates the entailment client for entailment scoring
func NewCrossEncoder(config Config) (CrossEncoder, error) {
	switch strings.ToLower(config.Provider) {
	case "http", "":
		c, err := NewHTTPCrossEncoder(config)
		if err != nil {
			return nil, err
		}
		return c, nil

	case "openai":
		j, err := NewChatJudge(config)
		if err != nil {
			return nil, err
		}
		return j, nil

	default:
		return nil, fmt.Errorf("unknown entailment provider: %s (supported: http, openai)", config.Provider)
	}
}

// Clients holds the model client required by a scoring strategy; the other is nil
type Clients struct {
	Embedder     Embedder
	CrossEncoder CrossEncoder
}

// NewClients builds the model client the configured strategy needs
func NewClients(strategy model.Strategy, config Config) (Clients, error) {
	switch strategy {
	case model.StrategyCosine:
		e, err := NewEmbedder(config)
		return Clients{Embedder: e}, err
	case model.StrategyEntailment:
		c, err := NewCrossEncoder(config)
		return Clients{CrossEncoder: c}, err
	default:
		return Clients{}, fmt.Errorf("unknown strategy: %s", strategy)
	}
}
