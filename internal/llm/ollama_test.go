package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedder_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("Expected path /api/embed, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("Expected model nomic-embed-text, got %s", req.Model)
		}
		if len(req.Input) != 2 {
			t.Errorf("Expected 2 inputs, got %d", len(req.Input))
		}

		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Model:      req.Model,
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer server.Close()

	embedder, err := NewOllamaEmbedder(Config{BaseURL: server.URL + "/", Model: "nomic-embed-text", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 0.3 {
		t.Errorf("Unexpected vectors: %v", vectors)
	}
}

func TestOllamaEmbedder_Embed_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nomic-embed-text\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	embedder, _ := NewOllamaEmbedder(Config{BaseURL: server.URL, Model: "nomic-embed-text"})

	_, err := embedder.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected ollama error message, got %v", err)
	}
}

func TestOllamaEmbedder_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,0]]}`))
	}))
	defer server.Close()

	embedder, _ := NewOllamaEmbedder(Config{BaseURL: server.URL, Model: "m"})

	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("Expected error for missing embedding")
	}
}

func TestOllamaEmbedder_RequiresModel(t *testing.T) {
	if _, err := NewOllamaEmbedder(Config{}); err == nil {
		t.Error("Expected error without model")
	}
}

func TestOllamaEmbedder_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	embedder, _ := NewOllamaEmbedder(Config{BaseURL: server.URL, Model: "m"})
	if err := embedder.Ping(context.Background()); err != nil {
		t.Errorf("Expected ollama to be available, got %v", err)
	}

	down, _ := NewOllamaEmbedder(Config{BaseURL: "http://127.0.0.1:1", Model: "m", Timeout: 1})
	if err := down.Ping(context.Background()); err == nil {
		t.Error("Expected error for unreachable ollama")
	}
}
