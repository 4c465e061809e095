package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// MockVerifier implements Verifier
type MockVerifier struct {
	ShouldError bool
}

func (m *MockVerifier) Verify(ctx context.Context, in Input) (*model.Report, error) {
	// Earlier lines finish last
	time.Sleep(time.Duration(10-in.Line) * time.Millisecond)
	if m.ShouldError {
		return nil, errors.New("verify error")
	}
	return &model.Report{
		Mode:  in.Mode(),
		Query: in.Query,
		Verdicts: []model.Verdict{
			{Claim: in.Text, Label: model.LabelConsistent},
		},
	}, nil
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inputs.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessInputs(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{}, 3)

	inputs := []Input{
		{Line: 1, Text: "Whales are marine mammals."},
		{Line: 2, Text: "The Earth is flat."},
		{Line: 3, Query: "Gampel-Bratsch", Response: "It was created in 2004."},
	}

	results := processor.ProcessInputs(context.Background(), inputs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for line %d: %v", res.Input.Line, res.Error)
		}
		if res.Input.Line != inputs[i].Line {
			t.Errorf("result %d belongs to line %d", i, res.Input.Line)
		}
		if res.Report == nil {
			t.Error("expected report for successful verification")
		}
	}

	if results[2].Report.Mode != model.ModeQueryResponse {
		t.Errorf("expected query_response mode, got %s", results[2].Report.Mode)
	}
}

func TestBatchProcessor_ProcessInputs_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{ShouldError: true}, 2)

	results := processor.ProcessInputs(context.Background(), []Input{{Line: 1, Text: "x"}})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessInputs_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessInputs(ctx, []Input{{Line: 1, Text: "a"}, {Line: 2, Text: "b"}})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", res.Error)
		}
	}
}

func TestBatchProcessor_ProcessInputs_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{}, 2)

	results := processor.ProcessInputs(context.Background(), []Input{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadInputs(t *testing.T) {
	content := `Whales are marine mammals. The blue whale is large.
# comment

{"id":"q1","query":"Gampel-Bratsch","response":"Created in 2004."}
   {"text":"The Earth is flat."}   
{"response":"Created in 2004.","documents":["Doc one.","Doc two."]}
`
	inputs, err := ReadInputs(writeTemp(t, content))
	if err != nil {
		t.Fatalf("ReadInputs failed: %v", err)
	}

	if len(inputs) != 4 {
		t.Fatalf("expected 4 inputs, got %d", len(inputs))
	}

	if inputs[0].Line != 1 || !strings.HasPrefix(inputs[0].Text, "Whales") {
		t.Errorf("unexpected first input: %+v", inputs[0])
	}
	if inputs[1].ID != "q1" || inputs[1].Line != 4 || inputs[1].Mode() != model.ModeQueryResponse {
		t.Errorf("unexpected JSON input: %+v", inputs[1])
	}
	if inputs[2].Text != "The Earth is flat." || inputs[2].Mode() != model.ModePerClaim {
		t.Errorf("unexpected text input: %+v", inputs[2])
	}
	if len(inputs[3].Documents) != 2 {
		t.Errorf("expected 2 documents, got %d", len(inputs[3].Documents))
	}
}

func TestReadInputs_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad json":          "{\"text\": \n",
		"empty object":      "{}\n",
		"response no query": `{"response":"x"}`,
	}
	for name, content := range cases {
		if _, err := ReadInputs(writeTemp(t, content)); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		} else if !strings.Contains(err.Error(), "line 1") {
			t.Errorf("%s: expected line number in error, got %v", name, err)
		}
	}
}

func TestReadInputs_NonExistent(t *testing.T) {
	_, err := ReadInputs("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchResult_GetError(t *testing.T) {
	r1 := &BatchResult{Input: Input{Line: 1}, Error: nil}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("verify failed")
	r2 := &BatchResult{Input: Input{Line: 1}, Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "First text.\n# comment\n\nSecond text.\nThird text.\n")

	processor := NewBatchProcessor(&MockVerifier{}, 2)
	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[2].Input.Text != "Third text." {
		t.Errorf("expected input order to be preserved, got %q", results[2].Input.Text)
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{}, 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
