package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRunner struct {
	runFunc  func(ctx context.Context, req pipeline.Request) (*model.Report, error)
	readyErr error
	last     pipeline.Request
}

func (m *mockRunner) Run(ctx context.Context, req pipeline.Request) (*model.Report, error) {
	m.last = req
	if m.runFunc != nil {
		return m.runFunc(ctx, req)
	}
	return &model.Report{
		Mode:     req.Mode,
		Verdicts: []model.Verdict{{Claim: "c", Label: model.LabelConsistent, Score: model.Float(0.9)}},
	}, nil
}

func (m *mockRunner) Ready(context.Context) error {
	return m.readyErr
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestVerify(t *testing.T) {
	runner := &mockRunner{}
	h := New(runner, Options{}).Handler()

	w := do(t, h, http.MethodPost, "/v1/verify", `{"text":"The Earth is round.","html":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var report model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Len(t, report.Verdicts, 1)
	assert.Equal(t, model.ModePerClaim, runner.last.Mode)
	assert.True(t, runner.last.HTML)
}

func TestVerify_BadRequest(t *testing.T) {
	h := New(&mockRunner{}, Options{}).Handler()

	for _, body := range []string{`{}`, `not json`, `{"text":""}`} {
		w := do(t, h, http.MethodPost, "/v1/verify", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestCheck(t *testing.T) {
	runner := &mockRunner{}
	h := New(runner, Options{}).Handler()

	w := do(t, h, http.MethodPost, "/v1/check", `{"query":"Blue whale","response":"It is large.","documents":["d1","d2"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.ModeQueryResponse, runner.last.Mode)
	assert.Equal(t, "Blue whale", runner.last.Query)
	assert.Equal(t, "It is large.", runner.last.Text)
	assert.Equal(t, []string{"d1", "d2"}, runner.last.Documents)

	w = do(t, h, http.MethodPost, "/v1/check", `{"query":"Blue whale"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRun_AbortedReturnsPartialReport(t *testing.T) {
	runner := &mockRunner{runFunc: func(ctx context.Context, req pipeline.Request) (*model.Report, error) {
		return &model.Report{Verdicts: []model.Verdict{
			{Claim: "a", Label: model.LabelConsistent},
			{Claim: "b", Label: model.LabelCancelled},
		}}, fmt.Errorf("%w: lookup failed", pipeline.ErrRunAborted)
	}}
	h := New(runner, Options{}).Handler()

	w := do(t, h, http.MethodPost, "/v1/verify", `{"text":"a. b."}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "lookup failed")
	require.NotNil(t, resp.Report)
	assert.Len(t, resp.Report.Verdicts, 2)
}

func TestRun_InternalError(t *testing.T) {
	runner := &mockRunner{runFunc: func(context.Context, pipeline.Request) (*model.Report, error) {
		return nil, errors.New("extract claims: segment service down")
	}}
	w := do(t, New(runner, Options{}).Handler(), http.MethodPost, "/v1/verify", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	runner := &mockRunner{}
	h := New(runner, Options{}).Handler()

	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	runner.readyErr = errors.New("connect to ollama: connection refused")
	w = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "veracity_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	w := do(t, New(&mockRunner{}, Options{Gatherer: reg}).Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "veracity_test_total 1"))

	w = do(t, New(&mockRunner{}, Options{}).Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
