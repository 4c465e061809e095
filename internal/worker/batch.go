package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// maxLineBytes bounds one batch input line
const maxLineBytes = 1 << 20

// Input is one batch entry. A plain-text line becomes Text; a JSON line may
// carry a query/response pair instead.
type Input struct {
	Line      int      `json:"-"`
	ID        string   `json:"id,omitempty"`
	Text      string   `json:"text,omitempty"`
	Query     string   `json:"query,omitempty"`
	Response  string   `json:"response,omitempty"`
	Documents []string `json:"documents,omitempty"`
}

// Mode returns the pipeline mode implied by the input fields
func (in Input) Mode() model.Mode {
	if in.Response != "" {
		return model.ModeQueryResponse
	}
	return model.ModePerClaim
}

// Verifier defines the interface for verifying one input
type Verifier interface {
	Verify(ctx context.Context, in Input) (*model.Report, error)
}

// VerifyJob verifies a single batch input
type VerifyJob struct {
	Input    Input
	Verifier Verifier
}

// Execute executes the verification job. An aborted run keeps its partial report.
func (j *VerifyJob) Execute(ctx context.Context) Result {
	report, err := j.Verifier.Verify(ctx, j.Input)
	return &BatchResult{
		Input:  j.Input,
		Report: report,
		Error:  err,
	}
}

// BatchResult represents the result of a verification job
type BatchResult struct {
	Input  Input
	Report *model.Report
	Error  error
}

// GetError returns the error from the batch result
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies multiple inputs concurrently
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier Verifier, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// ProcessInputs verifies inputs concurrently and returns one result per
// input, in input order
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []Input) []*BatchResult {
	if len(inputs) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, in := range inputs {
		pool.Submit(&VerifyJob{
			Input:    in,
			Verifier: b.verifier,
		})
	}

	results := pool.Wait()

	batchResults := make([]*BatchResult, len(results))
	for i, result := range results {
		if result == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			batchResults[i] = &BatchResult{Input: inputs[i], Error: err}
			continue
		}
		batchResults[i] = result.(*BatchResult)
	}

	return batchResults
}

// ProcessFile reads inputs from a file and verifies them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	inputs, err := ReadInputs(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

// ReadInputs reads batch inputs from a file, one per line. Lines starting
// with '{' are decoded as JSON; other lines are texts to verify claim by claim.
// Blank lines and '#' comments are skipped.
func ReadInputs(filePath string) ([]Input, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []Input

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		in := Input{Line: lineNo}
		if strings.HasPrefix(line, "{") {
			if err := json.Unmarshal([]byte(line), &in); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			in.Line = lineNo
		} else {
			in.Text = line
		}

		if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.Response) == "" {
			return nil, fmt.Errorf("line %d: input needs \"text\" or \"response\"", lineNo)
		}
		if in.Response != "" && in.Query == "" && len(in.Documents) == 0 {
			return nil, fmt.Errorf("line %d: \"response\" needs a \"query\" or \"documents\"", lineNo)
		}

		inputs = append(inputs, in)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
