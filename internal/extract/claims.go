package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/segment"
	"golang.org/x/net/html"
)

// ClaimExtractor turns raw text into an ordered list of sentence claims
type ClaimExtractor struct {
	segmenter segment.Segmenter
}

// NewClaimExtractor creates a claim extractor backed by the given segmenter
func NewClaimExtractor(segmenter segment.Segmenter) *ClaimExtractor {
	if segmenter == nil {
		segmenter = segment.NewRuleSegmenter()
	}
	return &ClaimExtractor{segmenter: segmenter}
}

// Extract splits text into claims, one per non-empty sentence, in source order
func (e *ClaimExtractor) Extract(ctx context.Context, text string) ([]model.Claim, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Claim{}, nil
	}

	spans, err := e.segmenter.Segment(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}

	claims := make([]model.Claim, 0, len(spans))
	for _, span := range spans {
		claim, err := model.NewClaim(span.Text, span.Start, len(claims))
		if err != nil {
			// Whitespace-only span
			continue
		}
		claims = append(claims, claim)
	}

	return claims, nil
}

// ExtractHTML extracts claims from the visible text of an HTML document
func (e *ClaimExtractor) ExtractHTML(ctx context.Context, htmlContent string) ([]model.Claim, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return e.Extract(ctx, VisibleText(doc))
}

// VisibleText extracts text nodes from HTML, skipping scripts/styles.
// Block-level elements end with a blank line so that headings and list
// items never merge into the following sentence.
func VisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n\n")
		}
	}

	walk(n)
	return buf.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "blockquote", "table", "tr", "br", "dd", "dt":
		return true
	}
	return false
}
