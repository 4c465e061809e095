package evidence

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ppiankov/veracity/internal/model"
	"go.uber.org/zap"
)

// RetryingSource retries temporary lookup failures with exponential backoff.
// NotFound and Ambiguous are answers and are never retried; an exhausted
// retry budget returns the last LookupError.
type RetryingSource struct {
	source   Source
	attempts uint
	backoff  time.Duration
	onRetry  func(attempt uint, err error)
	logger   *zap.Logger
}

// NewRetryingSource wraps src with up to retries extra attempts, starting at
// backoff and doubling. onRetry, if set, is called before every extra attempt.
func NewRetryingSource(src Source, retries int, backoff time.Duration, logger *zap.Logger, onRetry func(attempt uint, err error)) *RetryingSource {
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingSource{
		source:   src,
		attempts: uint(retries) + 1,
		backoff:  backoff,
		onRetry:  onRetry,
		logger:   logger,
	}
}

// Lookup calls the wrapped source until it answers, fails permanently, or
// the attempt budget is spent
func (r *RetryingSource) Lookup(ctx context.Context, query string) (model.EvidenceResult, error) {
	var calls uint
	var lastErr error

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.backoff),
		retry.MaxDelay(r.backoff * 8),
		retry.RetryIf(IsTemporary),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < r.attempts {
				r.logger.Warn("evidence lookup failed, retrying",
					zap.String("query", query),
					zap.Uint("attempt", n+1),
					zap.Error(err))
			}
		}),
	}
	if jitter := r.backoff / 4; jitter > 0 {
		opts = append(opts,
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
			retry.MaxJitter(jitter))
	} else {
		opts = append(opts, retry.DelayType(retry.BackOffDelay))
	}

	var result model.EvidenceResult
	err := retry.Do(func() error {
		calls++
		if calls > 1 && r.onRetry != nil {
			r.onRetry(calls-1, lastErr)
		}
		res, err := r.source.Lookup(ctx, query)
		lastErr = err
		if err != nil {
			return err
		}
		result = res
		return nil
	}, opts...)
	if err != nil {
		return model.EvidenceResult{}, err
	}
	return result, nil
}
