package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/relevance.md
var relevancePromptRaw string

// RelevanceTemplate is the parsed prompt template for relevance classification.
// Parsed once at package init; reused on every Filter call.
var RelevanceTemplate = template.Must(template.New("relevance").Parse(relevancePromptRaw))
