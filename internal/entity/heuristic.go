package entity

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// determiners are dropped from the front of a capitalized span
var determiners = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "in": true, "on": true, "at": true, "he": true, "she": true, "they": true,
	"el": true, "la": true, "los": true, "las": true, "un": true, "una": true, "en": true, "este": true, "esta": true,
}

// connectors may join capitalized words inside one name ("Bay of Biscay")
var connectors = map[string]bool{
	"of": true, "de": true, "del": true, "la": true, "von": true, "van": true, "der": true, "y": true, "and": true,
}

// HeuristicRecognizer finds capitalized names and numbers without a model.
// "Gampel-Bratsch was founded in 2004" yields ["Gampel-Bratsch", "2004"].
type HeuristicRecognizer struct{}

// NewHeuristicRecognizer creates the in-process recognizer
func NewHeuristicRecognizer() *HeuristicRecognizer {
	return &HeuristicRecognizer{}
}

func (h *HeuristicRecognizer) Entities(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		out     []string
		span    []string
		pending []string // connectors waiting for a following capitalized word
	)

	flush := func() {
		for len(span) > 0 && determiners[strings.ToLower(span[0])] {
			span = span[1:]
		}
		if len(span) > 0 {
			out = append(out, strings.Join(span, " "))
		}
		span, pending = nil, nil
	}

	for _, raw := range strings.Fields(text) {
		word := strings.TrimFunc(raw, isEdgePunct)
		closes := word != "" && !strings.HasSuffix(raw, word) && endsClause(raw)

		switch {
		case word == "":
			flush()
			continue

		case isNumber(word):
			flush()
			out = append(out, word)

		case isCapitalized(word):
			span = append(span, pending...)
			pending = nil
			span = append(span, word)

		case len(span) > 0 && connectors[word]:
			pending = append(pending, word)

		default:
			flush()
		}

		if closes {
			flush()
		}
	}
	flush()

	return out, nil
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) && r != '-' || unicode.IsSymbol(r)
}

// endsClause reports whether raw ends with punctuation that ends a name
func endsClause(raw string) bool {
	r, _ := utf8.DecodeLastRuneInString(strings.TrimRight(raw, "\"')]}»”’"))
	switch r {
	case ',', ';', ':', '.', '!', '?', ')':
		return true
	}
	return false
}

func isCapitalized(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

// isNumber accepts digits with inner separators: 2004, 1,000, 3.5, 30-metre is not a number
func isNumber(word string) bool {
	digits := 0
	for i, r := range word {
		switch {
		case unicode.IsDigit(r):
			digits++
		case (r == '.' || r == ',') && i > 0 && i < len(word)-1:
		default:
			return false
		}
	}
	return digits > 0
}
