package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Pinger is implemented by clients that can check their backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

func newOpenAIClient(config Config) (*openai.Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = config.httpClient(30 * time.Second)

	return openai.NewClientWithConfig(clientConfig), nil
}

// OpenAIEmbedder implements Embedder with the OpenAI embeddings API
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedding client
func NewOpenAIEmbedder(config Config) (*OpenAIEmbedder, error) {
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: client, config: config}, nil
}

// Name returns the provider name
func (e *OpenAIEmbedder) Name() string {
	return "openai"
}

// Ping lists models as a lightweight credentials check
func (e *OpenAIEmbedder) Ping(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("OpenAI API check failed: %w", err)
	}
	return nil
}

// Embed encodes texts in one request; vectors are returned in input order
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.config.timeout(30*time.Second))
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// ChatJudge implements CrossEncoder by asking a chat model for the
// entailment probability of each pair
type ChatJudge struct {
	client *openai.Client
	config Config
}

// NewChatJudge creates a chat-completion entailment judge
func NewChatJudge(config Config) (*ChatJudge, error) {
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	return &ChatJudge{client: client, config: config}, nil
}

// Name returns the provider name
func (j *ChatJudge) Name() string {
	return "openai"
}

// Ping lists models as a lightweight credentials check
func (j *ChatJudge) Ping(ctx context.Context) error {
	if _, err := j.client.ListModels(ctx); err != nil {
		return fmt.Errorf("OpenAI API check failed: %w", err)
	}
	return nil
}

const judgeSystemPrompt = "You are a natural language inference model. " +
	"Given a claim and a piece of evidence, reply with a single number between 0 and 1: " +
	"the probability that the evidence entails the claim. Reply with the number only."

// Predict judges pairs one at a time; any failed pair fails the batch
func (j *ChatJudge) Predict(ctx context.Context, pairs []Pair) ([]float64, error) {
	scores := make([]float64, 0, len(pairs))
	for _, pair := range pairs {
		score, err := j.judge(ctx, pair)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, nil
}

func (j *ChatJudge) judge(ctx context.Context, pair Pair) (float64, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, j.config.timeout(30*time.Second))
	defer cancel()

	resp, err := j.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model: j.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Claim: %s\n\nEvidence: %s", pair.Claim, pair.Evidence)},
		},
		MaxTokens:   8,
		Temperature: 0,
	})
	if err != nil {
		return 0, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("no response from OpenAI")
	}

	return ParseProbability(resp.Choices[0].Message.Content)
}

var numberPattern = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)`)

// ParseProbability reads the first number in a model reply and clamps it to [0,1].
// Replies like "85%" are read as percentages.
func ParseProbability(reply string) (float64, error) {
	loc := numberPattern.FindStringIndex(reply)
	if loc == nil {
		return 0, fmt.Errorf("judge reply has no probability: %q", truncate(reply, 80))
	}

	v, err := strconv.ParseFloat(reply[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, fmt.Errorf("parse judge reply %q: %w", truncate(reply, 80), err)
	}

	if strings.HasPrefix(strings.TrimSpace(reply[loc[1]:]), "%") {
		v /= 100
	}

	switch {
	case v < 0:
		return 0, nil
	case v > 1:
		return 1, nil
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
