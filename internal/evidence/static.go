package evidence

import (
	"context"
	"sync"

	"github.com/ppiankov/veracity/internal/model"
)

// StaticSource answers lookups from a fixed table. Unknown queries are NotFound.
type StaticSource struct {
	mu      sync.RWMutex
	results map[string]model.EvidenceResult
	errs    map[string]error
}

// NewStaticSource creates a source backed by results
func NewStaticSource(results map[string]model.EvidenceResult) *StaticSource {
	s := &StaticSource{
		results: make(map[string]model.EvidenceResult, len(results)),
		errs:    make(map[string]error),
	}
	for q, r := range results {
		s.results[q] = r
	}
	return s
}

// Set registers the result for query
func (s *StaticSource) Set(query string, result model.EvidenceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[query] = result
	delete(s.errs, query)
}

// Fail makes lookups of query return err
func (s *StaticSource) Fail(query string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[query] = err
}

// Lookup returns the registered result for query
func (s *StaticSource) Lookup(ctx context.Context, query string) (model.EvidenceResult, error) {
	if err := ctx.Err(); err != nil {
		return model.EvidenceResult{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err, ok := s.errs[query]; ok {
		return model.EvidenceResult{}, err
	}
	if r, ok := s.results[query]; ok {
		return r, nil
	}
	return model.NotFound(), nil
}
