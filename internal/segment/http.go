package segment

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

// HTTPSegmenter calls an external segmentation service.
// Request: {"text":"...","language":"en"}
// Response: {"sentences":[{"text":"...","start":0,"end":12}]}
type HTTPSegmenter struct {
	endpoint   string
	language   string
	httpClient *http.Client
}

type segmentRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type segmentResponse struct {
	Sentences []Span `json:"sentences"`
}

// NewHTTPSegmenter creates a client for the segmentation service at endpoint
func NewHTTPSegmenter(endpoint, language string, timeout time.Duration) *HTTPSegmenter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSegmenter{
		endpoint:   endpoint,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Segment posts text to the service and returns its spans in order
func (h *HTTPSegmenter) Segment(ctx context.Context, text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	body, err := json.Marshal(segmentRequest{Text: text, Language: h.language})
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
		return nil, fmt.Errorf("segment request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("segment service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var sr segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Services that omit offsets get them located in the source text
	cursor := 0
	for i := range sr.Sentences {
		sp := &sr.Sentences[i]
		if sp.End > sp.Start {
			cursor = sp.End
			continue
		}
		if idx := strings.Index(text[cursor:], strings.TrimSpace(sp.Text)); idx >= 0 {
			sp.Start = cursor + idx
			sp.End = sp.Start + len(strings.TrimSpace(sp.Text))
			cursor = sp.End
		}
	}

	return sr.Sentences, nil
}
