package model

import (
	"errors"
	"strings"
)

// ErrEmptyClaim is returned when a claim would carry no text
var ErrEmptyClaim = errors.New("claim text is empty")

// Claim represents an atomic statement extracted from the source text
type Claim struct {
	Text     string `json:"text"`               // The claim text itself (trimmed)
	Offset   int    `json:"offset"`             // Byte offset of the claim in the source text
	Sentence int    `json:"sentence,omitempty"` // Sentence index in source (0-based)
}

// NewClaim trims text and builds a claim, rejecting empty text
func NewClaim(text string, offset, sentence int) (Claim, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Claim{}, ErrEmptyClaim
	}
	return Claim{Text: trimmed, Offset: offset, Sentence: sentence}, nil
}
