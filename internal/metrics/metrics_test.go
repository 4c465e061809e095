package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/veracity/internal/model"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveLookup(model.NotFound(), nil)
	c.ObserveLookup(model.Found("t", "x", ""), nil)
	c.ObserveLookup(model.EvidenceResult{}, errors.New("timeout"))
	c.ObserveRetry()
	c.ObserveScore(model.StrategyEntailment, model.ScoreOK(0.4), 20*time.Millisecond)
	c.ObserveReport(&model.Report{
		Mode: model.ModePerClaim,
		Verdicts: []model.Verdict{
			{Label: model.LabelConsistent},
			{Label: model.LabelConsistent},
			{Label: model.LabelNoEvidence},
		},
	}, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.lookups.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lookups.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lookupRetries))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.verdicts.WithLabelValues("consistent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("per_claim", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.scoring))
}

func TestCollectors_Nil(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveLookup(model.NotFound(), nil)
		c.ObserveRetry()
		c.ObserveScore(model.StrategyCosine, model.ScoreOK(0), time.Second)
		c.ObserveReport(&model.Report{}, nil)
	})
}
