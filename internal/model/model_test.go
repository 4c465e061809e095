package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClaim_TrimsAndRejectsEmpty(t *testing.T) {
	c, err := NewClaim("  Whales are marine mammals.  ", 3, 1)
	require.NoError(t, err)
	assert.Equal(t, "Whales are marine mammals.", c.Text)
	assert.Equal(t, 3, c.Offset)
	assert.Equal(t, 1, c.Sentence)

	_, err = NewClaim(" \n\t ", 0, 0)
	assert.ErrorIs(t, err, ErrEmptyClaim)
}

func TestAmbiguous_KeepsFirstThreeInOrder(t *testing.T) {
	opts := []string{"Mercury (planet)", "Mercury (element)", "Mercury (mythology)", "Freddie Mercury"}
	r := Ambiguous(opts)

	assert.Equal(t, EvidenceAmbiguous, r.Kind)
	assert.Equal(t, opts[:3], r.Candidates)
	assert.False(t, r.HasEvidence())

	// caller's slice must not alias the result
	opts[0] = "changed"
	assert.Equal(t, "Mercury (planet)", r.Candidates[0])
}

func TestEvidenceResult_Variants(t *testing.T) {
	assert.True(t, Found("Blue whale", "The blue whale is...", "https://en.wikipedia.org/wiki/Blue_whale").HasEvidence())
	assert.False(t, NotFound().HasEvidence())
	assert.Empty(t, NotFound().Text)
}

func TestEvidenceResult_JSONRoundTrip(t *testing.T) {
	in := Ambiguous([]string{"a", "b"})
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out EvidenceResult
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestScoreFailure_ZeroValue(t *testing.T) {
	r := ScoreFailure(assert.AnError)
	assert.True(t, r.Failed)
	assert.Equal(t, 0.0, r.Value)
	assert.Equal(t, assert.AnError.Error(), r.Message)

	assert.Equal(t, "scoring failed", ScoreFailure(nil).Message)
}

func TestVerdict_Record(t *testing.T) {
	ev := Found("Earth", "The Earth is an oblate spheroid.", "")
	v := Verdict{Claim: "The Earth is flat", Evidence: &ev, Score: Float(0.05), Label: LabelInconsistent}

	rec := v.Record()
	require.NotNil(t, rec.Evidence)
	assert.Equal(t, "The Earth is an oblate spheroid.", *rec.Evidence)
	assert.Equal(t, 0.05, *rec.Score)

	nf := NotFound()
	noEv := Verdict{Claim: "Xyzzyqplorp", Evidence: &nf, Label: LabelNoEvidence}
	rec = noEv.Record()
	assert.Nil(t, rec.Evidence)
	assert.Nil(t, rec.Score)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"score":null`)
}

func TestReport_SummaryAndHallucinations(t *testing.T) {
	r := &Report{Verdicts: []Verdict{
		{Label: LabelConsistent},
		{Label: LabelInconsistent, Claim: "a"},
		{Label: LabelInconsistent, Claim: "b"},
		{Label: LabelNoEvidence},
	}}

	s := r.Summary()
	assert.Equal(t, 1, s[LabelConsistent])
	assert.Equal(t, 2, s[LabelInconsistent])
	assert.Equal(t, 1, s[LabelNoEvidence])

	h := r.Hallucinations()
	require.Len(t, h, 2)
	assert.Equal(t, "a", h[0].Claim)
	assert.Len(t, r.Records(), 4)
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg, err := Preset(name)
		require.NoError(t, err, name)
		lo, hi := cfg.Scoring.Strategy.Range()
		assert.GreaterOrEqual(t, cfg.Scoring.Threshold, lo, name)
		assert.LessOrEqual(t, cfg.Scoring.Threshold, hi, name)
	}

	es, err := Preset("wiki-es-embed-entities")
	require.NoError(t, err)
	assert.Equal(t, StrategyCosine, es.Scoring.Strategy)
	assert.Equal(t, 0.1, es.Scoring.Threshold)
	assert.True(t, es.Entity.Enabled)

	long, err := Preset("wiki-en-nli-long")
	require.NoError(t, err)
	assert.Equal(t, 5, long.Evidence.MaxSentences)
	assert.Equal(t, 0.5, long.Scoring.Threshold)

	_, err = Preset("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wiki-en-nli")
}

func TestConfig_ValidateAggregates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Strategy = "bm25"
	cfg.Evidence.Resolve = "guess"
	cfg.Concurrency.Workers = 0
	cfg.Evidence.MaxSentences = -1

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"scoring.strategy", "evidence.resolve", "concurrency.workers", "evidence.max_sentences"} {
		assert.True(t, strings.Contains(msg, want), "missing %s in %s", want, msg)
	}
}

func TestConfig_ThresholdRangeFollowsStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Threshold = -0.2
	require.Error(t, cfg.Validate())

	cfg.Scoring.Strategy = StrategyCosine
	cfg.Scoring.Provider = "ollama"
	assert.NoError(t, cfg.Validate())
}
