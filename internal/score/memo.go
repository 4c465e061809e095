package score

import (
	"context"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
)

// Memoized caches successful results of an underlying scorer by
// (strategy, reference, candidates). Failures are never cached.
type Memoized struct {
	scorer Scorer
	cache  *gocache.Cache
}

// NewMemoized wraps scorer with an in-memory result cache
func NewMemoized(scorer Scorer, ttl time.Duration) *Memoized {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Memoized{
		scorer: scorer,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

func (m *Memoized) Strategy() model.Strategy {
	return m.scorer.Strategy()
}

func (m *Memoized) Score(ctx context.Context, reference, candidate string) model.ScoreResult {
	return m.ScoreMany(ctx, reference, []string{candidate})
}

func (m *Memoized) ScoreMany(ctx context.Context, reference string, candidates []string) model.ScoreResult {
	key := m.key(reference, candidates)
	if v, ok := m.cache.Get(key); ok {
		if result, ok := v.(model.ScoreResult); ok {
			return result
		}
	}

	result := m.scorer.ScoreMany(ctx, reference, candidates)
	if !result.Failed {
		m.cache.SetDefault(key, result)
	}
	return result
}

// Len returns the number of memoized results
func (m *Memoized) Len() int {
	return m.cache.ItemCount()
}

// key length-prefixes every text so that no two candidate lists share a payload
func (m *Memoized) key(reference string, candidates []string) string {
	var b strings.Builder
	for _, text := range append([]string{reference}, candidates...) {
		b.WriteString(strconv.Itoa(len(text)))
		b.WriteByte(':')
		b.WriteString(text)
	}
	return cache.Key("score", string(m.scorer.Strategy()), b.String())
}
