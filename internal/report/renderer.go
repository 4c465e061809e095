// Package report renders verification reports as JSON, Markdown and a
// terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/veracity/internal/model"
)

// Renderer renders reports
type Renderer struct {
	// Excerpt is the evidence excerpt length in summaries and Markdown
	Excerpt int
}

// NewRenderer creates a renderer with the default excerpt length
func NewRenderer() *Renderer {
	return &Renderer{Excerpt: 80}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as a Markdown document
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown returns the report as a Markdown document
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Veracity Report\n\n")
	fmt.Fprintf(&b, "- **Run:** `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- **Mode:** %s\n", report.Mode)
	if report.Query != "" {
		fmt.Fprintf(&b, "- **Query:** %s\n", report.Query)
	}
	fmt.Fprintf(&b, "- **Strategy:** %s (threshold %.2f)\n", report.Strategy, report.Threshold)
	if report.EntityMode {
		fmt.Fprintf(&b, "- **Entity check:** on\n")
	}
	fmt.Fprintf(&b, "- **Started:** %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Duration:** %s\n\n", report.Duration.Round(1e6))

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Label | Count |\n|---|---|\n")
	for _, lc := range sortedSummary(report) {
		fmt.Fprintf(&b, "| %s | %d |\n", lc.label, lc.count)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Verdicts\n\n")
	if len(report.Verdicts) == 0 {
		b.WriteString("_No claims found._\n")
		return b.String()
	}

	fmt.Fprintf(&b, "| # | Claim | Label | Score | Evidence |\n|---|---|---|---|---|\n")
	for _, v := range report.Verdicts {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			v.Index+1,
			mdCell(v.Claim),
			labelBadge(v.Label),
			formatScore(v.Score),
			mdCell(r.evidenceCell(v)))
	}

	if h := report.Hallucinations(); len(h) > 0 {
		fmt.Fprintf(&b, "\n## Unsupported Claims\n\n")
		for _, v := range h {
			text, _ := v.EvidenceText()
			fmt.Fprintf(&b, "- **%s**\n", v.Claim)
			if v.Evidence != nil && v.Evidence.URL != "" {
				fmt.Fprintf(&b, "  - Source: [%s](%s)\n", v.Evidence.Title, v.Evidence.URL)
			}
			fmt.Fprintf(&b, "  - Evidence: %s\n", excerpt(text, 300))
			if v.KeywordsOK != nil && !*v.KeywordsOK {
				b.WriteString("  - Entities missing from evidence\n")
			}
		}
	}

	return b.String()
}

// RenderSummary writes a terminal table of claim, label, score and evidence
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tLABEL\tSCORE\tCLAIM\tEVIDENCE\n")
	for _, v := range report.Verdicts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			v.Index+1,
			v.Label,
			formatScore(v.Score),
			excerpt(v.Claim, 60),
			r.evidenceCell(v))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	parts := make([]string, 0, 5)
	for _, lc := range sortedSummary(report) {
		parts = append(parts, fmt.Sprintf("%s=%d", lc.label, lc.count))
	}
	_, err := fmt.Fprintf(w, "\n%d verdicts: %s\n", len(report.Verdicts), strings.Join(parts, " "))
	return err
}

func (r *Renderer) evidenceCell(v model.Verdict) string {
	if v.Evidence == nil {
		if v.Message != "" {
			return "(" + v.Message + ")"
		}
		return "-"
	}
	switch v.Evidence.Kind {
	case model.EvidenceAmbiguous:
		return "ambiguous: " + strings.Join(v.Evidence.Candidates, "; ")
	case model.EvidenceNotFound:
		return "not found"
	}
	return excerpt(v.Evidence.Text, r.Excerpt)
}

type labelCount struct {
	label model.Label
	count int
}

func sortedSummary(report *model.Report) []labelCount {
	summary := report.Summary()
	out := make([]labelCount, 0, len(summary))
	for l, n := range summary {
		out = append(out, labelCount{l, n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].label < out[j].label })
	return out
}

func labelBadge(l model.Label) string {
	switch l {
	case model.LabelConsistent:
		return "✅ consistent"
	case model.LabelInconsistent:
		return "❌ inconsistent"
	case model.LabelNoEvidence:
		return "❔ no evidence"
	case model.LabelScoringError:
		return "⚠️ scoring error"
	default:
		return string(l)
	}
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *s)
}

// excerpt shortens s to at most n runes on a word boundary
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

func mdCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
