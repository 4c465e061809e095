package model

import (
	"time"
)

// Mode selects how the orchestrator interprets its input
type Mode string

const (
	ModePerClaim      Mode = "per_claim"      // Segment text into claims and check each one
	ModeQueryResponse Mode = "query_response" // Check one response against evidence for one query
)

// Label is the verdict classification
type Label string

const (
	LabelNoEvidence   Label = "no_evidence"
	LabelConsistent   Label = "consistent"
	LabelInconsistent Label = "inconsistent"
	LabelScoringError Label = "scoring_error"
	LabelCancelled    Label = "cancelled"
)

// Verdict is the judgment for one claim (or one query/response pair)
type Verdict struct {
	Index      int             `json:"index"`                 // Position in the report
	Claim      string          `json:"claim_or_query"`        // Claim text, or the query in query/response mode
	Response   string          `json:"response,omitempty"`    // Checked response (query/response mode)
	Offset     int             `json:"offset,omitempty"`      // Claim offset in the source text
	Evidence   *EvidenceResult `json:"lookup,omitempty"`      // Lookup outcome, nil when never resolved
	Score      *float64        `json:"score,omitempty"`       // Absent when no score was computed
	KeywordsOK *bool           `json:"keywords_ok,omitempty"` // Entity overlap result, entity mode only
	Label      Label           `json:"label"`
	Message    string          `json:"message,omitempty"` // Failure message for scoring_error / cancelled
}

// EvidenceText returns the evidence snippet and whether one exists
func (v Verdict) EvidenceText() (string, bool) {
	if v.Evidence == nil || !v.Evidence.HasEvidence() {
		return "", false
	}
	return v.Evidence.Text, true
}

// Record is the flat output record of a verdict
type Record struct {
	ClaimOrQuery string   `json:"claim_or_query"`
	Evidence     *string  `json:"evidence"`
	Label        Label    `json:"label"`
	Score        *float64 `json:"score"`
}

// Record flattens the verdict
func (v Verdict) Record() Record {
	rec := Record{ClaimOrQuery: v.Claim, Label: v.Label, Score: v.Score}
	if text, ok := v.EvidenceText(); ok {
		rec.Evidence = &text
	}
	return rec
}

// Report is the ordered result of one pipeline run
type Report struct {
	RunID      string        `json:"run_id"`
	Mode       Mode          `json:"mode"`
	Strategy   Strategy      `json:"strategy"`
	Threshold  float64       `json:"threshold"`
	EntityMode bool          `json:"entity_mode"`
	Query      string        `json:"query,omitempty"`
	Verdicts   []Verdict     `json:"verdicts"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Records returns the flat records in report order
func (r *Report) Records() []Record {
	out := make([]Record, len(r.Verdicts))
	for i, v := range r.Verdicts {
		out[i] = v.Record()
	}
	return out
}

// Summary counts verdicts per label
func (r *Report) Summary() map[Label]int {
	counts := make(map[Label]int)
	for _, v := range r.Verdicts {
		counts[v.Label]++
	}
	return counts
}

// Hallucinations returns the verdicts judged unsupported by the evidence found
func (r *Report) Hallucinations() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if v.Label == LabelInconsistent {
			out = append(out, v)
		}
	}
	return out
}

// Float returns a pointer to v, for optional score fields
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v, for optional flags
func Bool(v bool) *bool {
	return &v
}
