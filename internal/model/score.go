package model

// Strategy names the scoring model family a threshold is calibrated for
type Strategy string

const (
	StrategyEntailment Strategy = "entailment" // Cross-encoder entailment probability in [0,1]
	StrategyCosine     Strategy = "cosine"     // Cosine similarity of sentence embeddings in [-1,1]
)

// Range returns the inclusive score range produced by the strategy
func (s Strategy) Range() (float64, float64) {
	switch s {
	case StrategyCosine:
		return -1, 1
	default:
		return 0, 1
	}
}

// Valid reports whether s is a known strategy
func (s Strategy) Valid() bool {
	return s == StrategyEntailment || s == StrategyCosine
}

// ScoreResult is the outcome of a semantic comparison.
// When Failed is set, Value is 0 and is not a measurement.
type ScoreResult struct {
	Value   float64 `json:"value"`
	Best    int     `json:"best,omitempty"` // Winning candidate index in multi-document scoring
	Failed  bool    `json:"failed,omitempty"`
	Message string  `json:"message,omitempty"`
}

// ScoreOK wraps a genuine measurement
func ScoreOK(v float64) ScoreResult {
	return ScoreResult{Value: v}
}

// ScoreFailure records a model failure
func ScoreFailure(err error) ScoreResult {
	msg := "scoring failed"
	if err != nil {
		msg = err.Error()
	}
	return ScoreResult{Failed: true, Message: msg}
}
