// Package pipeline drives claim verification: extraction, evidence lookup,
// scoring, the optional entity check and classification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/classify"
	"github.com/ppiankov/veracity/internal/entity"
	"github.com/ppiankov/veracity/internal/evidence"
	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/worker"
)

// ErrRunAborted is returned with a partial report when a lookup fails after
// its retries or the run is cancelled
var ErrRunAborted = errors.New("verification run aborted")

// Options are the collaborators of an Orchestrator. Validator is only
// required when Policy.EntityMode is set.
type Options struct {
	Extractor *extract.ClaimExtractor
	Source    evidence.Source
	Scorer    score.Scorer
	Validator *entity.Validator
	Policy    classify.Policy
	Workers   int
	Logger    *zap.Logger
	Metrics   *metrics.Collectors

	// Clients are probed by Ready; optional
	Clients llm.Clients
}

// Orchestrator runs verification requests. It holds no per-run state and is
// safe for concurrent use.
type Orchestrator struct {
	extractor *extract.ClaimExtractor
	source    evidence.Source
	scorer    score.Scorer
	validator *entity.Validator
	policy    classify.Policy
	workers   int
	logger    *zap.Logger
	metrics   *metrics.Collectors
	clients   llm.Clients
}

// Request is one verification run
type Request struct {
	Mode Mode

	// Text is the source text (per-claim) or the response (query/response)
	Text string

	// HTML marks Text as an HTML document; per-claim mode only
	HTML bool

	// Query is the lookup query in query/response mode; Text is used when empty
	Query string

	// Documents, when set in query/response mode, replace the lookup: the
	// response is compared with each document and the best one is kept
	Documents []string
}

// Mode aliases model.Mode so callers need not import model for requests
type Mode = model.Mode

// New creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("evidence source is required")
	}
	if opts.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if opts.Policy.EntityMode && opts.Validator == nil {
		return nil, fmt.Errorf("entity mode requires a validator")
	}
	if opts.Scorer.Strategy() != opts.Policy.Strategy {
		return nil, fmt.Errorf("policy threshold is calibrated for %s but scorer uses %s", opts.Policy.Strategy, opts.Scorer.Strategy())
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	if opts.Extractor == nil {
		opts.Extractor = extract.NewClaimExtractor(nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Orchestrator{
		extractor: opts.Extractor,
		source:    opts.Source,
		scorer:    opts.Scorer,
		validator: opts.Validator,
		policy:    opts.Policy,
		workers:   opts.Workers,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		clients:   opts.Clients,
	}, nil
}

// Policy returns the classification policy in use
func (o *Orchestrator) Policy() classify.Policy {
	return o.policy
}

// Run verifies req and returns its report. When the run is aborted the
// report still holds every verdict resolved so far, unresolved claims are
// labelled cancelled, and the error wraps ErrRunAborted.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.Report, error) {
	if req.Mode == "" {
		req.Mode = model.ModePerClaim
	}

	start := time.Now()
	report := &model.Report{
		RunID:      uuid.NewString(),
		Mode:       req.Mode,
		Strategy:   o.policy.Strategy,
		Threshold:  o.policy.Threshold,
		EntityMode: o.policy.EntityMode,
		Verdicts:   []model.Verdict{},
		StartedAt:  start.UTC(),
	}

	var err error
	switch req.Mode {
	case model.ModePerClaim:
		err = o.runClaims(ctx, req, report)
	case model.ModeQueryResponse:
		err = o.runQueryResponse(ctx, req, report)
	default:
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}

	report.Duration = time.Since(start)
	o.metrics.ObserveReport(report, err)

	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.String("mode", string(report.Mode)),
		zap.Int("verdicts", len(report.Verdicts)),
		zap.Duration("duration", report.Duration),
	}
	for label, n := range report.Summary() {
		fields = append(fields, zap.Int(string(label), n))
	}
	if err != nil {
		o.logger.Warn("verification run aborted", append(fields, zap.Error(err))...)
	} else {
		o.logger.Info("verification run complete", fields...)
	}

	return report, err
}

// claimResult is the outcome of one per-claim job
type claimResult struct {
	verdict model.Verdict
	err     error
}

func (r *claimResult) GetError() error {
	return r.err
}

func (o *Orchestrator) runClaims(ctx context.Context, req Request, report *model.Report) error {
	var (
		claims []model.Claim
		err    error
	)
	if req.HTML {
		claims, err = o.extractor.ExtractHTML(ctx, req.Text)
	} else {
		claims, err = o.extractor.Extract(ctx, req.Text)
	}
	if err != nil {
		return fmt.Errorf("extract claims: %w", err)
	}
	if len(claims) == 0 {
		return nil
	}

	pool := worker.NewPool(ctx, o.workers)
	pool.Start()

	// The first lookup failure cancels the pool; failures caused by that
	// cancellation are not recorded
	var (
		abortOnce sync.Once
		abortErr  error
	)
	abort := func(err error) {
		if pool.Context().Err() != nil {
			return
		}
		abortOnce.Do(func() {
			abortErr = err
			pool.Cancel()
		})
	}

	for i, claim := range claims {
		pool.Submit(worker.JobFunc(func(jctx context.Context) worker.Result {
			v, err := o.verifyClaim(jctx, i, claim)
			if err != nil {
				abort(err)
			}
			return &claimResult{verdict: v, err: err}
		}))
	}

	results := pool.Wait()

	unresolved := 0
	report.Verdicts = make([]model.Verdict, len(claims))
	for i, r := range results {
		if r == nil {
			unresolved++
			report.Verdicts[i] = cancelled(model.Verdict{Index: i, Claim: claims[i].Text, Offset: claims[i].Offset}, nil)
			continue
		}
		cr := r.(*claimResult)
		if cr.err != nil {
			unresolved++
			report.Verdicts[i] = cancelled(cr.verdict, cr.err)
			continue
		}
		report.Verdicts[i] = cr.verdict
	}

	if unresolved == 0 {
		return nil
	}
	return runError(ctx, abortErr)
}

// verifyClaim runs lookup, score, entity check and classify for one claim.
// A lookup failure or cancellation mid-claim is returned as an error.
func (o *Orchestrator) verifyClaim(ctx context.Context, index int, claim model.Claim) (model.Verdict, error) {
	v := model.Verdict{Index: index, Claim: claim.Text, Offset: claim.Offset}

	ev, err := o.lookup(ctx, claim.Text)
	if err != nil {
		return v, err
	}
	v.Evidence = &ev

	if err := o.judge(ctx, &v, claim.Text, []string{ev.Text}); err != nil {
		return v, err
	}
	return v, nil
}

func (o *Orchestrator) runQueryResponse(ctx context.Context, req Request, report *model.Report) error {
	response := strings.TrimSpace(req.Text)
	if response == "" {
		return nil
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = response
	}
	report.Query = query

	v := model.Verdict{Index: 0, Claim: query, Response: response}

	if len(req.Documents) > 0 {
		if err := o.judgeDocuments(ctx, &v, response, req.Documents); err != nil {
			report.Verdicts = []model.Verdict{cancelled(v, err)}
			return runError(ctx, err)
		}
		report.Verdicts = []model.Verdict{v}
		return nil
	}

	ev, err := o.lookup(ctx, query)
	if err != nil {
		report.Verdicts = []model.Verdict{cancelled(v, err)}
		return runError(ctx, err)
	}
	v.Evidence = &ev

	if err := o.judge(ctx, &v, response, []string{ev.Text}); err != nil {
		report.Verdicts = []model.Verdict{cancelled(v, err)}
		return runError(ctx, err)
	}
	report.Verdicts = []model.Verdict{v}
	return nil
}

// judgeDocuments compares the response with caller-supplied documents. The
// winning document becomes the verdict's evidence.
func (o *Orchestrator) judgeDocuments(ctx context.Context, v *model.Verdict, response string, documents []string) error {
	docs := make([]string, 0, len(documents))
	for _, d := range documents {
		if d = strings.TrimSpace(d); d != "" {
			docs = append(docs, d)
		}
	}
	if len(docs) == 0 {
		ev := model.NotFound()
		v.Evidence = &ev
		v.Label, v.Message = classify.Classify(ev, model.ScoreResult{}, nil, o.policy)
		return nil
	}

	result := o.score(ctx, response, docs)
	ev := model.Found("", docs[result.Best], "")
	v.Evidence = &ev
	return o.classify(ctx, v, response, docs, result)
}

// judge scores a found lookup and classifies it. Missing evidence is
// labelled without calling the scorer.
func (o *Orchestrator) judge(ctx context.Context, v *model.Verdict, reference string, candidates []string) error {
	if !v.Evidence.HasEvidence() {
		v.Label, v.Message = classify.Classify(*v.Evidence, model.ScoreResult{}, nil, o.policy)
		return nil
	}
	return o.classify(ctx, v, reference, candidates, o.score(ctx, reference, candidates))
}

// classify labels a scored verdict. A scorer or entity failure caused by
// cancellation is returned instead of being labelled a scoring error.
func (o *Orchestrator) classify(ctx context.Context, v *model.Verdict, reference string, candidates []string, result model.ScoreResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var keywordsOK *bool
	if o.policy.EntityMode && !result.Failed {
		ok, err := o.validator.AnyConsistent(ctx, reference, candidates)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			o.logger.Warn("entity check failed", zap.String("claim", v.Claim), zap.Error(err))
			result = model.ScoreFailure(fmt.Errorf("entity recognition: %w", err))
		} else {
			keywordsOK = model.Bool(ok)
		}
	}
	v.KeywordsOK = keywordsOK
	v.Score = model.Float(result.Value)

	v.Label, v.Message = classify.Classify(*v.Evidence, result, keywordsOK, o.policy)
	return nil
}

func (o *Orchestrator) lookup(ctx context.Context, query string) (model.EvidenceResult, error) {
	ev, err := o.source.Lookup(ctx, query)
	o.metrics.ObserveLookup(ev, err)
	if err != nil {
		return model.EvidenceResult{}, err
	}
	o.logger.Debug("evidence lookup",
		zap.String("query", query),
		zap.String("outcome", string(ev.Kind)),
		zap.String("title", ev.Title))
	return ev, nil
}

func (o *Orchestrator) score(ctx context.Context, reference string, candidates []string) model.ScoreResult {
	start := time.Now()
	result := o.scorer.ScoreMany(ctx, reference, candidates)
	o.metrics.ObserveScore(o.scorer.Strategy(), result, time.Since(start))
	if result.Failed {
		o.logger.Warn("scoring failed", zap.String("reference", reference), zap.String("error", result.Message))
	}
	return result
}

// Verify implements worker.Verifier for batch runs
func (o *Orchestrator) Verify(ctx context.Context, in worker.Input) (*model.Report, error) {
	req := Request{Mode: in.Mode(), Text: in.Text}
	if req.Mode == model.ModeQueryResponse {
		req.Text = in.Response
		req.Query = in.Query
		req.Documents = in.Documents
	}
	return o.Run(ctx, req)
}

// Ready checks that the model backends answer, for clients that can be probed
func (o *Orchestrator) Ready(ctx context.Context) error {
	for _, c := range []any{o.clients.Embedder, o.clients.CrossEncoder} {
		if p, ok := c.(llm.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// cancelled marks a verdict that was never resolved
func cancelled(v model.Verdict, err error) model.Verdict {
	v.Label = model.LabelCancelled
	v.Evidence = nil
	v.Score = nil
	v.KeywordsOK = nil
	if err != nil {
		v.Message = err.Error()
	}
	return v
}

// runError wraps the abort cause, or the caller's cancellation, in ErrRunAborted
func runError(ctx context.Context, cause error) error {
	if cause == nil {
		cause = ctx.Err()
	}
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrRunAborted, cause)
}
