package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// HTTPCrossEncoder calls a self-hosted cross-encoder service.
// Request: {"model":"...","pairs":[["claim","evidence"]]}
// Response: {"scores":[0.93]} or raw logits {"scores":[[c,e,n]],"labels":["contradiction","entailment","neutral"]}
type HTTPCrossEncoder struct {
	endpoint   string
	httpClient *http.Client
	config     Config
}

type crossEncoderRequest struct {
	Model string      `json:"model,omitempty"`
	Pairs [][2]string `json:"pairs"`
}

type crossEncoderResponse struct {
	Scores []json.RawMessage `json:"scores"`
	Labels []string          `json:"labels,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// NewHTTPCrossEncoder creates a client for the cross-encoder service
func NewHTTPCrossEncoder(config Config) (*HTTPCrossEncoder, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("cross-encoder endpoint is required")
	}
	return &HTTPCrossEncoder{
		endpoint:   config.BaseURL,
		httpClient: config.httpClient(30 * time.Second),
		config:     config,
	}, nil
}

// Name returns the provider name
func (c *HTTPCrossEncoder) Name() string {
	return "http"
}

// Predict scores all pairs in one request
func (c *HTTPCrossEncoder) Predict(ctx context.Context, pairs []Pair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	body := crossEncoderRequest{Model: c.config.Model, Pairs: make([][2]string, len(pairs))}
	for i, p := range pairs {
		body.Pairs[i] = [2]string{p.Claim, p.Evidence}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var cr crossEncoderResponse
	decodeErr := json.Unmarshal(respBody, &cr)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && cr.Error != "" {
			return nil, fmt.Errorf("cross-encoder error (%d): %s", resp.StatusCode, cr.Error)
		}
		return nil, fmt.Errorf("cross-encoder error (%d): %s", resp.StatusCode, truncate(strings.TrimSpace(string(respBody)), 200))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	if len(cr.Scores) != len(pairs) {
		return nil, fmt.Errorf("cross-encoder returned %d scores for %d pairs", len(cr.Scores), len(pairs))
	}

	entailment := entailmentIndex(cr.Labels)
	scores := make([]float64, len(cr.Scores))
	for i, raw := range cr.Scores {
		s, err := decodeScore(raw, entailment)
		if err != nil {
			return nil, fmt.Errorf("score %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}

// entailmentIndex locates the entailment logit. NLI cross-encoders order
// their labels (contradiction, entailment, neutral) unless told otherwise.
func entailmentIndex(labels []string) int {
	for i, l := range labels {
		if strings.EqualFold(l, "entailment") {
			return i
		}
	}
	return 1
}

// decodeScore accepts either a probability or a row of logits
func decodeScore(raw json.RawMessage, entailment int) (float64, error) {
	var p float64
	if err := json.Unmarshal(raw, &p); err == nil {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return 0, fmt.Errorf("probability %v outside [0,1]", p)
		}
		return p, nil
	}

	var logits []float64
	if err := json.Unmarshal(raw, &logits); err != nil {
		return 0, fmt.Errorf("unexpected score %s", truncate(string(raw), 40))
	}
	if entailment >= len(logits) {
		return 0, fmt.Errorf("expected at least %d logits, got %d", entailment+1, len(logits))
	}
	return softmax(logits)[entailment], nil
}

func softmax(logits []float64) []float64 {
	maxv := math.Inf(-1)
	for _, v := range logits {
		maxv = math.Max(maxv, v)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
