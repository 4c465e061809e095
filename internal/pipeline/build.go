package pipeline

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/classify"
	"github.com/ppiankov/veracity/internal/entity"
	"github.com/ppiankov/veracity/internal/evidence"
	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/segment"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

// FromConfig builds an orchestrator and all its collaborators from cfg.
// Model clients are constructed once here and shared by every run.
func FromConfig(cfg *model.Config, logger *zap.Logger, m *metrics.Collectors) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var seg segment.Segmenter
	switch cfg.Segmenter.Provider {
	case "http":
		seg = segment.NewHTTPSegmenter(cfg.Segmenter.Endpoint, cfg.Evidence.Language, cfg.Evidence.Timeout)
	default:
		seg = segment.NewRuleSegmenter()
	}

	clients, err := llm.NewClients(cfg.Scoring.Strategy, llm.ConfigFromModel(cfg))
	if err != nil {
		return nil, fmt.Errorf("scoring model: %w", err)
	}
	scorer, err := score.New(cfg.Scoring.Strategy, clients)
	if err != nil {
		return nil, err
	}
	if cfg.Scoring.Memoize {
		scorer = score.NewMemoized(scorer, cfg.Cache.MemoryTTL)
	}

	var validator *entity.Validator
	if cfg.Entity.Enabled {
		var rec entity.Recognizer
		switch cfg.Entity.Provider {
		case "http":
			rec = entity.NewHTTPRecognizer(cfg.Entity.Endpoint, cfg.Evidence.Language, cfg.Evidence.Timeout)
		default:
			rec = entity.NewHeuristicRecognizer()
		}
		validator = entity.NewValidator(rec)
	}

	return New(Options{
		Extractor: extract.NewClaimExtractor(seg),
		Source:    NewSource(cfg, logger, m),
		Scorer:    scorer,
		Validator: validator,
		Policy:    classify.PolicyFromConfig(cfg),
		Workers:   cfg.Concurrency.Workers,
		Logger:    logger,
		Metrics:   m,
		Clients:   clients,
	})
}

// NewSource builds the evidence source stack: the MediaWiki client behind a
// per-host rate limiter and optional robots.txt gate, wrapped in bounded
// retries and then the lookup cache.
func NewSource(cfg *model.Config, logger *zap.Logger, m *metrics.Collectors) evidence.Source {
	ev := cfg.Evidence

	limiter := worker.NewLimiter(ev.RequestsPerSecond, ev.Burst)

	var robots *util.RobotsChecker
	if ev.RespectRobots {
		client := &http.Client{
			Timeout:   ev.Timeout,
			Transport: util.NewTransport(ev.HTTPProxy, ev.HTTPSProxy, ev.NoProxy),
		}
		robots = util.NewRobotsChecker(ev.UserAgent, client, ev.Timeout, logger)
	}

	var src evidence.Source = evidence.NewMediaWiki(ev, limiter, robots, logger)

	backoff := time.Duration(ev.BackoffMS) * time.Millisecond
	src = evidence.NewRetryingSource(src, ev.Retries, backoff, logger, func(uint, error) {
		m.ObserveRetry()
	})

	if !cfg.Cache.Enabled {
		return src
	}
	bound := ev.Timeout*time.Duration(ev.Retries+1) + backoff*8*time.Duration(ev.Retries)
	return evidence.NewCachedSource(src, cache.New(cfg.Cache), ev.Language, evidence.Variant(ev), 0, logger).WithBound(bound)
}
