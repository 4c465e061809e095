package model

// MaxCandidates is the number of disambiguation options kept for an ambiguous topic
const MaxCandidates = 3

// EvidenceKind tags which variant of EvidenceResult is active
type EvidenceKind string

const (
	EvidenceFound     EvidenceKind = "found"     // A page was found and its extract retrieved
	EvidenceAmbiguous EvidenceKind = "ambiguous" // The query resolved to a disambiguation page
	EvidenceNotFound  EvidenceKind = "not_found" // No matching page exists
)

// EvidenceResult is the outcome of a knowledge-source lookup.
// Exactly one variant is active, selected by Kind.
type EvidenceResult struct {
	Kind       EvidenceKind `json:"kind"`
	Title      string       `json:"title,omitempty"`      // Resolved page title (found)
	Text       string       `json:"text,omitempty"`       // Retrieved snippet (found)
	URL        string       `json:"url,omitempty"`        // Canonical page URL (found)
	Candidates []string     `json:"candidates,omitempty"` // Disambiguation options (ambiguous)
}

// Found builds a found result
func Found(title, text, url string) EvidenceResult {
	return EvidenceResult{Kind: EvidenceFound, Title: title, Text: text, URL: url}
}

// Ambiguous builds an ambiguous result keeping the first MaxCandidates options in order
func Ambiguous(candidates []string) EvidenceResult {
	n := len(candidates)
	if n > MaxCandidates {
		n = MaxCandidates
	}
	kept := make([]string, n)
	copy(kept, candidates[:n])
	return EvidenceResult{Kind: EvidenceAmbiguous, Candidates: kept}
}

// NotFound builds a not-found result
func NotFound() EvidenceResult {
	return EvidenceResult{Kind: EvidenceNotFound}
}

// HasEvidence reports whether the lookup produced usable text
func (r EvidenceResult) HasEvidence() bool {
	return r.Kind == EvidenceFound
}
