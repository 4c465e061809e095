// Package segment splits raw text into ordered sentence spans.
package segment

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is one sentence of the source text. Start and End are byte offsets
// into the original text; Text is the span with surrounding whitespace removed.
type Span struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Segmenter defines the interface for sentence segmentation engines
type Segmenter interface {
	Segment(ctx context.Context, text string) ([]Span, error)
}

// closers may follow a sentence terminator and still belong to the sentence
const closers = "\"')]}»”’"

// defaultAbbreviations never end a sentence when followed by a space
var defaultAbbreviations = []string{
	"mr.", "mrs.", "ms.", "dr.", "prof.", "sr.", "sra.", "jr.", "st.", "mt.",
	"vs.", "e.g.", "i.e.", "cf.", "u.s.", "u.k.", "no.", "nos.", "fig.",
	"approx.", "inc.", "ltd.", "co.", "corp.", "gen.", "gov.", "sen.", "rep.",
	"jan.", "feb.", "mar.", "apr.", "aug.", "sept.", "oct.", "nov.", "dec.",
	"ca.", "c.", "aprox.", "pág.", "núm.",
}

// RuleSegmenter is an in-process punctuation-based segmenter
type RuleSegmenter struct {
	abbreviations map[string]bool
}

// NewRuleSegmenter creates a rule segmenter with the default abbreviation list
// plus any extra abbreviations (written with their trailing dot, e.g. "approx.")
func NewRuleSegmenter(extra ...string) *RuleSegmenter {
	abbr := make(map[string]bool, len(defaultAbbreviations)+len(extra))
	for _, a := range defaultAbbreviations {
		abbr[a] = true
	}
	for _, a := range extra {
		abbr[strings.ToLower(a)] = true
	}
	return &RuleSegmenter{abbreviations: abbr}
}

// Segment splits text at sentence terminators and blank lines
func (s *RuleSegmenter) Segment(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var spans []Span
	start := -1

	emit := func(end int) {
		if start < 0 {
			return
		}
		trimmed := strings.TrimRightFunc(text[start:end], unicode.IsSpace)
		if trimmed != "" {
			spans = append(spans, Span{Text: trimmed, Start: start, End: start + len(trimmed)})
		}
		start = -1
	}

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])

		if start < 0 {
			if !unicode.IsSpace(r) {
				start = i
			}
			i += size
			continue
		}

		if r == '\n' && blankLineFollows(text, i+size) {
			emit(i)
			i += size
			continue
		}

		if r == '.' || r == '!' || r == '?' {
			end := i + size
			// Absorb "?!", "..." and closing quotes/brackets
			for end < len(text) {
				nr, ns := utf8.DecodeRuneInString(text[end:])
				if nr == '.' || nr == '!' || nr == '?' || strings.ContainsRune(closers, nr) {
					end += ns
					continue
				}
				break
			}
			if s.isBoundary(text, start, i, end, r) {
				emit(end)
			}
			i = end
			continue
		}

		i += size
	}
	emit(len(text))

	return spans, nil
}

// isBoundary decides whether the terminator at pos (absorbed through end) closes a sentence
func (s *RuleSegmenter) isBoundary(text string, start, pos, end int, term rune) bool {
	if end >= len(text) {
		return true
	}

	next, _ := utf8.DecodeRuneInString(text[end:])
	if !unicode.IsSpace(next) {
		return false
	}

	if term == '.' && end == pos+1 {
		word := lastWord(text[start:pos])
		if s.abbreviations[strings.ToLower(word)+"."] {
			return false
		}
		// Single-letter initials such as "J. R. R. Tolkien"
		if utf8.RuneCountInString(word) == 1 {
			if r, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(r) {
				return false
			}
		}
	}

	following := strings.TrimLeftFunc(text[end:], unicode.IsSpace)
	if following == "" {
		return true
	}
	fr, _ := utf8.DecodeRuneInString(following)
	return !unicode.IsLower(fr)
}

// lastWord returns the trailing whitespace-delimited token of s
func lastWord(s string) string {
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	return s[idx+1:]
}

// blankLineFollows reports whether only horizontal whitespace separates i from another newline
func blankLineFollows(text string, i int) bool {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\r':
			i++
		case '\n':
			return true
		default:
			return false
		}
	}
	return false
}
