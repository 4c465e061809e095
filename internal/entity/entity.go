// Package entity checks that the named entities of a response also appear
// in its supporting evidence.
package entity

import (
	"context"
	"fmt"
	"strings"
)

// Recognizer returns the entity surface strings found in text, in order of
// appearance. Duplicates are allowed; the validator collapses them.
type Recognizer interface {
	Entities(ctx context.Context, text string) ([]string, error)
}

// Set is a set of distinct entity surface strings. Case is kept as emitted.
type Set map[string]struct{}

// NewSet collapses duplicates in entities
func NewSet(entities []string) Set {
	s := make(Set, len(entities))
	for _, e := range entities {
		s[e] = struct{}{}
	}
	return s
}

// SubsetOf reports whether every member of s is in other
func (s Set) SubsetOf(other Set) bool {
	for e := range s {
		if _, ok := other[e]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the members of s absent from other
func (s Set) Missing(other Set) []string {
	var out []string
	for e := range s {
		if _, ok := other[e]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// Validator is the entity overlap check
type Validator struct {
	recognizer Recognizer
}

// NewValidator creates a validator backed by recognizer
func NewValidator(recognizer Recognizer) *Validator {
	if recognizer == nil {
		recognizer = NewHeuristicRecognizer()
	}
	return &Validator{recognizer: recognizer}
}

// KeywordsConsistent reports whether the entities of response are a subset
// of the entities of evidence. A response without entities is consistent
// with any evidence.
func (v *Validator) KeywordsConsistent(ctx context.Context, response, evidence string) (bool, error) {
	return v.AnyConsistent(ctx, response, []string{evidence})
}

// AnyConsistent reports whether the subset check holds against at least one
// of the evidence documents taken separately.
func (v *Validator) AnyConsistent(ctx context.Context, response string, evidences []string) (bool, error) {
	want, err := v.entities(ctx, response)
	if err != nil {
		return false, fmt.Errorf("response entities: %w", err)
	}
	if len(want) == 0 {
		return true, nil
	}

	for i, evidence := range evidences {
		have, err := v.entities(ctx, evidence)
		if err != nil {
			return false, fmt.Errorf("evidence %d entities: %w", i, err)
		}
		if want.SubsetOf(have) {
			return true, nil
		}
	}
	return false, nil
}

func (v *Validator) entities(ctx context.Context, text string) (Set, error) {
	if strings.TrimSpace(text) == "" {
		return Set{}, nil
	}
	ents, err := v.recognizer.Entities(ctx, text)
	if err != nil {
		return nil, err
	}
	return NewSet(ents), nil
}
