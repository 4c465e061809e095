// Package score compares claims with evidence using an external model.
package score

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
)

// ErrNoCandidates is reported when there is nothing to compare against
var ErrNoCandidates = errors.New("no candidates")

// Scorer computes the consistency score between a reference text (a claim
// or a response) and candidate evidence. Failures never surface as errors:
// they are reported in the ScoreResult.
type Scorer interface {
	Strategy() model.Strategy

	Score(ctx context.Context, reference, candidate string) model.ScoreResult

	// ScoreMany returns the highest pairwise score across candidates; the
	// earliest candidate wins ties and its index is stored in Best.
	ScoreMany(ctx context.Context, reference string, candidates []string) model.ScoreResult
}

// New builds the scorer for a strategy from its model clients
func New(strategy model.Strategy, clients llm.Clients) (Scorer, error) {
	switch strategy {
	case model.StrategyEntailment:
		if clients.CrossEncoder == nil {
			return nil, fmt.Errorf("entailment scoring requires a cross-encoder")
		}
		return NewEntailmentScorer(clients.CrossEncoder), nil
	case model.StrategyCosine:
		if clients.Embedder == nil {
			return nil, fmt.Errorf("cosine scoring requires an embedder")
		}
		return NewCosineScorer(clients.Embedder), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}
}

// EntailmentScorer scores (claim, evidence) pairs with a cross-encoder
type EntailmentScorer struct {
	model llm.CrossEncoder
}

// NewEntailmentScorer creates an entailment scorer
func NewEntailmentScorer(ce llm.CrossEncoder) *EntailmentScorer {
	return &EntailmentScorer{model: ce}
}

func (s *EntailmentScorer) Strategy() model.Strategy {
	return model.StrategyEntailment
}

func (s *EntailmentScorer) Score(ctx context.Context, reference, candidate string) model.ScoreResult {
	return s.ScoreMany(ctx, reference, []string{candidate})
}

// ScoreMany sends every pair in a single prediction call
func (s *EntailmentScorer) ScoreMany(ctx context.Context, reference string, candidates []string) (result model.ScoreResult) {
	if len(candidates) == 0 {
		return model.ScoreFailure(ErrNoCandidates)
	}
	defer recoverFailure(&result)

	pairs := make([]llm.Pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = llm.Pair{Claim: reference, Evidence: c}
	}

	scores, err := s.model.Predict(ctx, pairs)
	if err != nil {
		return model.ScoreFailure(fmt.Errorf("%s entailment: %w", s.model.Name(), err))
	}
	if len(scores) != len(candidates) {
		return model.ScoreFailure(fmt.Errorf("%s entailment: %d scores for %d pairs", s.model.Name(), len(scores), len(candidates)))
	}

	return stableMax(scores)
}

// CosineScorer compares independently encoded embeddings
type CosineScorer struct {
	model llm.Embedder
}

// NewCosineScorer creates a cosine similarity scorer
func NewCosineScorer(e llm.Embedder) *CosineScorer {
	return &CosineScorer{model: e}
}

func (s *CosineScorer) Strategy() model.Strategy {
	return model.StrategyCosine
}

func (s *CosineScorer) Score(ctx context.Context, reference, candidate string) model.ScoreResult {
	return s.ScoreMany(ctx, reference, []string{candidate})
}

// ScoreMany embeds the reference and all candidates in one call
func (s *CosineScorer) ScoreMany(ctx context.Context, reference string, candidates []string) (result model.ScoreResult) {
	if len(candidates) == 0 {
		return model.ScoreFailure(ErrNoCandidates)
	}
	defer recoverFailure(&result)

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, reference)
	texts = append(texts, candidates...)

	vectors, err := s.model.Embed(ctx, texts)
	if err != nil {
		return model.ScoreFailure(fmt.Errorf("%s embeddings: %w", s.model.Name(), err))
	}
	if len(vectors) != len(texts) {
		return model.ScoreFailure(fmt.Errorf("%s embeddings: %d vectors for %d texts", s.model.Name(), len(vectors), len(texts)))
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		sim, err := Cosine(vectors[0], vectors[i+1])
		if err != nil {
			return model.ScoreFailure(fmt.Errorf("candidate %d: %w", i, err))
		}
		scores[i] = sim
	}

	return stableMax(scores)
}

// Cosine returns the cosine similarity of two vectors of equal length
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vector")
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("zero vector")
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

// stableMax picks the highest score; a later candidate must be strictly
// greater to win
func stableMax(scores []float64) model.ScoreResult {
	best := 0
	for i, v := range scores {
		if math.IsNaN(v) {
			return model.ScoreFailure(fmt.Errorf("model returned NaN for candidate %d", i))
		}
		if v > scores[best] {
			best = i
		}
	}
	result := model.ScoreOK(scores[best])
	result.Best = best
	return result
}

func recoverFailure(result *model.ScoreResult) {
	if r := recover(); r != nil {
		*result = model.ScoreFailure(fmt.Errorf("model panic: %v", r))
	}
}
