// Package classify turns a score and an optional entity check into a verdict label.
package classify

import (
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

// Policy pairs a threshold with the scoring strategy it is calibrated for
type Policy struct {
	Strategy   model.Strategy
	Threshold  float64
	EntityMode bool // Also require the response entities to appear in the evidence
}

// DefaultPolicy returns the policy with the strategy's default threshold
func DefaultPolicy(strategy model.Strategy) Policy {
	return Policy{Strategy: strategy, Threshold: model.DefaultThreshold(strategy)}
}

// PolicyFromConfig builds the policy from the scoring and entity sections
func PolicyFromConfig(cfg *model.Config) Policy {
	return Policy{
		Strategy:   cfg.Scoring.Strategy,
		Threshold:  cfg.Scoring.Threshold,
		EntityMode: cfg.Entity.Enabled,
	}
}

// Validate checks the threshold lies in the strategy's score range
func (p Policy) Validate() error {
	if !p.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", p.Strategy)
	}
	lo, hi := p.Strategy.Range()
	if p.Threshold < lo || p.Threshold > hi {
		return fmt.Errorf("threshold %.3f outside [%g, %g] for %s", p.Threshold, lo, hi, p.Strategy)
	}
	return nil
}

// Classify labels one claim. Missing evidence wins over everything, then a
// scoring failure; only then is the threshold compared. In entity mode a
// nil keywordOK counts as a failed check.
func Classify(evidence model.EvidenceResult, score model.ScoreResult, keywordOK *bool, policy Policy) (model.Label, string) {
	if !evidence.HasEvidence() {
		return model.LabelNoEvidence, noEvidenceMessage(evidence)
	}

	if score.Failed {
		return model.LabelScoringError, score.Message
	}

	if score.Value < policy.Threshold {
		return model.LabelInconsistent, ""
	}

	if policy.EntityMode && (keywordOK == nil || !*keywordOK) {
		return model.LabelInconsistent, "entities not found in evidence"
	}

	return model.LabelConsistent, ""
}

func noEvidenceMessage(evidence model.EvidenceResult) string {
	if evidence.Kind == model.EvidenceAmbiguous {
		return fmt.Sprintf("ambiguous topic: %d candidates", len(evidence.Candidates))
	}
	return ""
}
