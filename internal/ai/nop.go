package ai

import (
	"context"

	"github.com/alwinjoseph/jobquest/internal/model"
)

// NopFilter is a no-op relevance filter used when ai.enabled is false.
// It returns the postings unchanged with no LLM calls.
type NopFilter struct{}

// NewNopFilter returns a NopFilter.
func NewNopFilter() *NopFilter {
	return &NopFilter{}
}

// Filter returns the postings unchanged.
func (n *NopFilter) Filter(_ context.Context, postings []model.JobPosting, _ string) []model.JobPosting {
	return postings
}
