package entity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRecognizer calls an external NER service.
// Request: {"text":"...","language":"en"}
// Response: {"entities":[{"text":"Gampel-Bratsch","label":"ORG"}]} or {"entities":["Gampel-Bratsch"]}
type HTTPRecognizer struct {
	endpoint   string
	language   string
	httpClient *http.Client
}

type nerRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type nerResponse struct {
	Entities []nerEntity `json:"entities"`
}

type nerEntity struct {
	Text  string `json:"text"`
	Label string `json:"label,omitempty"`
}

// UnmarshalJSON accepts a bare string as well as an object
func (e *nerEntity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Text = s
		return nil
	}
	type plain nerEntity
	return json.Unmarshal(data, (*plain)(e))
}

// NewHTTPRecognizer creates a client for the NER service at endpoint
func NewHTTPRecognizer(endpoint, language string, timeout time.Duration) *HTTPRecognizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRecognizer{
		endpoint:   endpoint,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Entities posts text to the service and returns the entity surface strings
func (h *HTTPRecognizer) Entities(ctx context.Context, text string) ([]string, error) {
	body, err := json.Marshal(nerRequest{Text: text, Language: h.language})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var nr nerResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]string, 0, len(nr.Entities))
	for _, e := range nr.Entities {
		if e.Text != "" {
			out = append(out, e.Text)
		}
	}
	return out, nil
}
