package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestOpenAIEmbedder_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "text-embedding-3-small" {
			t.Errorf("Expected default model, got %v", req["model"])
		}

		// Out of order on purpose
		resp := openai.EmbeddingResponse{
			Object: "list",
			Data: []openai.Embedding{
				{Object: "embedding", Index: 1, Embedding: []float32{0, 1}},
				{Object: "embedding", Index: 0, Embedding: []float32{1, 0}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	vectors, err := embedder.Embed(context.Background(), []string{"claim", "evidence"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(vectors) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("Vectors not in input order: %v", vectors)
	}
}

func TestOpenAIEmbedder_Embed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	embedder, _ := NewOpenAIEmbedder(Config{APIKey: "bad-key", BaseURL: server.URL, Timeout: 5})

	_, err := embedder.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "OpenAI API error") {
		t.Errorf("Expected wrapped API error, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed_Empty(t *testing.T) {
	embedder, _ := NewOpenAIEmbedder(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})

	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("Expected no vectors, got %d", len(vectors))
	}
}

func TestOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestChatJudge_Predict(t *testing.T) {
	replies := []string{"0.91", "Probability: 12%"}
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || !strings.HasPrefix(req.Messages[1].Content, "Claim: ") {
			t.Errorf("Unexpected messages: %+v", req.Messages)
		}

		reply := replies[calls%len(replies)]
		calls++
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	judge, err := NewChatJudge(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create judge: %v", err)
	}

	scores, err := judge.Predict(context.Background(), []Pair{
		{Claim: "The Earth orbits the Sun.", Evidence: "Earth is the third planet from the Sun."},
		{Claim: "The Earth is flat.", Evidence: "Earth is an oblate spheroid."},
	})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if len(scores) != 2 || scores[0] != 0.91 || scores[1] != 0.12 {
		t.Errorf("Unexpected scores: %v", scores)
	}
}

func TestChatJudge_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{})
	}))
	defer server.Close()

	judge, _ := NewChatJudge(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := judge.Predict(context.Background(), []Pair{{Claim: "a", Evidence: "b"}})
	if err == nil || !strings.Contains(err.Error(), "no response") {
		t.Errorf("Expected no response error, got %v", err)
	}
}

func TestParseProbability(t *testing.T) {
	tests := []struct {
		reply   string
		want    float64
		wantErr bool
	}{
		{"0.75", 0.75, false},
		{" 1", 1, false},
		{"The probability is .3 overall", 0.3, false},
		{"85%", 0.85, false},
		{"1.7", 1, false},
		{"-0.2", 0, false},
		{"unsure", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseProbability(tt.reply)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProbability(%q) error = %v, wantErr %v", tt.reply, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProbability(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}
