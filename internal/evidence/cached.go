package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedSource memoizes lookup answers and collapses concurrent identical
// lookups into one call. Errors are never cached.
type CachedSource struct {
	source  Source
	cache   cache.Cache
	scope   string
	variant string
	ttl     time.Duration
	bound   time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewCachedSource wraps src. scope is the key namespace (the corpus language);
// variant distinguishes lookup settings that change answers for the same query.
func NewCachedSource(src Source, c cache.Cache, scope, variant string, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{
		source:  src,
		cache:   c,
		scope:   scope,
		variant: variant,
		ttl:     ttl,
		logger:  logger,
	}
}

// Variant builds the cache variant string for an evidence configuration
func Variant(cfg model.EvidenceConfig) string {
	return fmt.Sprintf("%s|%s|%d|%t", cfg.Endpoint, cfg.Resolve, cfg.MaxSentences, cfg.IntroOnly)
}

// WithBound caps how long a shared lookup may run once the caller that
// started it has gone away. Zero leaves it unbounded.
func (c *CachedSource) WithBound(d time.Duration) *CachedSource {
	c.bound = d
	return c
}

// Lookup answers from cache when possible
func (c *CachedSource) Lookup(ctx context.Context, query string) (model.EvidenceResult, error) {
	key := cache.Key("evidence", c.scope, c.variant+"\x00"+query)

	if data, ok := c.cache.Get(key); ok {
		var res model.EvidenceResult
		if err := json.Unmarshal(data, &res); err == nil {
			c.logger.Debug("evidence cache hit", zap.String("query", query))
			return res, nil
		}
		_ = c.cache.Delete(key)
	}

	// The shared call outlives any single caller; each caller waits on its own ctx
	ch := c.group.DoChan(key, func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		if c.bound > 0 {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(sctx, c.bound)
			defer cancel()
		}
		return c.fetch(sctx, key, query)
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return model.EvidenceResult{}, ctx.Err()
	case r = <-ch:
	}

	if r.Err != nil {
		if isContextErr(r.Err) && ctx.Err() == nil {
			c.logger.Debug("shared evidence lookup expired, retrying", zap.String("query", query))
			return c.fetch(ctx, key, query)
		}
		return model.EvidenceResult{}, r.Err
	}

	res := r.Val.(model.EvidenceResult)
	if r.Shared {
		c.logger.Debug("evidence lookup shared", zap.String("query", query))
		// Callers must not alias each other's candidate lists
		res.Candidates = append([]string(nil), res.Candidates...)
	}
	return res, nil
}

func (c *CachedSource) fetch(ctx context.Context, key, query string) (model.EvidenceResult, error) {
	res, err := c.source.Lookup(ctx, query)
	if err != nil {
		return model.EvidenceResult{}, err
	}

	data, err := json.Marshal(res)
	if err == nil {
		err = c.cache.Set(key, data, c.ttl)
	}
	if err != nil {
		c.logger.Warn("evidence cache write failed", zap.String("query", query), zap.Error(err))
	}
	return res, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
