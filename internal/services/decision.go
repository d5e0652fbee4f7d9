// Package services – DecisionEngine
//
// Pure decision functions over a generation result: should a document be
// produced, and is the answer worth contributing to the knowledge base.
// Both are heuristics on the result itself; neither performs I/O.
package services

import (
	"regexp"
	"strings"

	"github.com/nexus-reussite/aria-backend/internal/clients/generation"
)

// DocumentDecision is the explicit outcome of the document-intent check.
// Modeling it as a tagged value (rather than truthiness on the raw field)
// keeps the orchestrator's branching exhaustive and testable.
type DocumentDecision struct {
	wanted bool
	markup string
}

// Wanted reports whether a document should be produced.
func (d DocumentDecision) Wanted() bool { return d.wanted }

// Markup returns the raw embedded markup; empty when not wanted.
func (d DocumentDecision) Markup() string { return d.markup }

// DecideDocument inspects the generation result. The generation service is
// the single source of truth on document intent: a document is wanted iff
// the result carries non-empty embedded markup, regardless of how the user
// phrased the request.
func DecideDocument(res *generation.Result) DocumentDecision {
	if res.HasMarkup() {
		return DocumentDecision{wanted: true, markup: res.ContenuLatex}
	}
	return DocumentDecision{}
}

// Structural markers that qualify an answer as well-formed: markdown
// headings, LaTeX sections, numbered-list lines, bullet lines, and French
// definition/theorem markers. Any one of them qualifies.
var (
	headingRE    = regexp.MustCompile(`(?m)(^|\n)#{1,3}\s+\S|\\section\*?\{|(^|\n)\s*\d+\.\s+`)
	listRE       = regexp.MustCompile(`(?m)(^|\n)\s*- \s*\S|(^|\n)\s*\d+\.\s*\S`)
	definitionRE = regexp.MustCompile(`(?i)d[ée]finition\s*:|th[ée]or[èe]me\s*:|proposition\s*:`)
)

// IngestionPolicy decides whether an answer is substantive enough to be
// added to the retrieval corpus. Short or unstructured answers (simple
// acknowledgements, clarifying questions) must never be ingested.
type IngestionPolicy struct {
	// MinWords is the word count the answer must exceed.
	MinWords int
	// RequireStructure additionally demands a structural marker.
	RequireStructure bool
}

// Eligible applies the policy to the plain-text answer.
func (p IngestionPolicy) Eligible(text string) bool {
	if wordCount(text) <= p.MinWords {
		return false
	}
	if !p.RequireStructure {
		return true
	}
	return hasStructure(text)
}

// hasStructure reports whether the text exhibits any structural marker.
func hasStructure(text string) bool {
	return headingRE.MatchString(text) ||
		listRE.MatchString(text) ||
		definitionRE.MatchString(text)
}

// wordCount counts whitespace-separated tokens.
func wordCount(text string) int {
	return len(strings.Fields(text))
}
