package classify

import (
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

var whale = model.Found("Blue whale", "The blue whale is the largest animal, reaching lengths of 30 metres.", "")

func TestClassify_SimilarityOnly(t *testing.T) {
	policy := DefaultPolicy(model.StrategyEntailment)

	tests := []struct {
		name  string
		score float64
		want  model.Label
	}{
		{"above threshold", 0.82, model.LabelConsistent},
		{"at threshold", 0.5, model.LabelConsistent},
		{"below threshold", 0.05, model.LabelInconsistent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, _ := Classify(whale, model.ScoreOK(tt.score), nil, policy)
			if label != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, label)
			}
		})
	}
}

func TestClassify_NoEvidenceTakesPrecedence(t *testing.T) {
	policies := []Policy{
		DefaultPolicy(model.StrategyEntailment),
		{Strategy: model.StrategyCosine, Threshold: 0.1, EntityMode: true},
	}
	lookups := []model.EvidenceResult{
		model.NotFound(),
		model.Ambiguous([]string{"Mercury (planet)", "Mercury (element)", "Mercury (mythology)"}),
	}
	scores := []model.ScoreResult{model.ScoreOK(1), model.ScoreOK(0), model.ScoreFailure(nil)}

	for _, p := range policies {
		for _, ev := range lookups {
			for _, s := range scores {
				label, _ := Classify(ev, s, model.Bool(true), p)
				if label != model.LabelNoEvidence {
					t.Errorf("lookup %s score %+v: expected no_evidence, got %s", ev.Kind, s, label)
				}
			}
		}
	}
}

func TestClassify_ScoringError(t *testing.T) {
	label, msg := Classify(whale, model.ScoreFailure(errTest("model not loaded")), model.Bool(true), DefaultPolicy(model.StrategyEntailment))
	if label != model.LabelScoringError {
		t.Errorf("Expected scoring_error, got %s", label)
	}
	if msg != "model not loaded" {
		t.Errorf("Expected failure message preserved, got %q", msg)
	}
}

func TestClassify_EntityMode(t *testing.T) {
	policy := Policy{Strategy: model.StrategyCosine, Threshold: 0.1, EntityMode: true}

	// High similarity, entities missing from the evidence
	label, _ := Classify(whale, model.ScoreOK(0.9), model.Bool(false), policy)
	if label != model.LabelInconsistent {
		t.Errorf("Expected inconsistent when entities mismatch, got %s", label)
	}

	label, _ = Classify(whale, model.ScoreOK(0.9), nil, policy)
	if label != model.LabelInconsistent {
		t.Errorf("Expected inconsistent without an entity check, got %s", label)
	}

	label, _ = Classify(whale, model.ScoreOK(0.9), model.Bool(true), policy)
	if label != model.LabelConsistent {
		t.Errorf("Expected consistent, got %s", label)
	}

	label, _ = Classify(whale, model.ScoreOK(0.05), model.Bool(true), policy)
	if label != model.LabelInconsistent {
		t.Errorf("Expected inconsistent below threshold, got %s", label)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	for _, policy := range []Policy{
		DefaultPolicy(model.StrategyEntailment),
		{Strategy: model.StrategyCosine, Threshold: 0.1, EntityMode: true},
	} {
		lo, hi := policy.Strategy.Range()
		for _, kw := range []*bool{nil, model.Bool(false), model.Bool(true)} {
			seenConsistent := false
			for s := lo; s <= hi; s += 0.01 {
				label, _ := Classify(whale, model.ScoreOK(s), kw, policy)
				if seenConsistent && label != model.LabelConsistent {
					t.Fatalf("%s: score %.2f flipped consistent to %s", policy.Strategy, s, label)
				}
				if label == model.LabelConsistent {
					seenConsistent = true
				}
			}
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := DefaultPolicy(model.StrategyCosine).Validate(); err != nil {
		t.Errorf("Expected default cosine policy to be valid, got %v", err)
	}
	if err := (Policy{Strategy: model.StrategyCosine, Threshold: -0.5}).Validate(); err != nil {
		t.Errorf("Negative cosine threshold is in range, got %v", err)
	}
	if err := (Policy{Strategy: model.StrategyEntailment, Threshold: -0.5}).Validate(); err == nil {
		t.Error("Expected error for negative entailment threshold")
	}
	if err := (Policy{Strategy: "bm25"}).Validate(); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg, err := model.Preset("wiki-es-embed-entities")
	if err != nil {
		t.Fatal(err)
	}
	p := PolicyFromConfig(cfg)
	if p.Strategy != model.StrategyCosine || p.Threshold != 0.1 || !p.EntityMode {
		t.Errorf("Unexpected policy: %+v", p)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
