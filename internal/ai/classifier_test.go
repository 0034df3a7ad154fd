package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/ratelimit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider returns canned responses (or errors) in call order.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *scriptedProvider) Complete(_ context.Context, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func newTestClassifier(p LLMProvider) *RelevanceClassifier {
	return NewRelevanceClassifier(p, RelevanceTemplate, ratelimit.NewPacer(0), discardLogger())
}

func makePostings(n int) []model.JobPosting {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	postings := make([]model.JobPosting, n)
	for i := range postings {
		ts := base.Add(-time.Duration(i) * time.Hour)
		postings[i] = model.JobPosting{
			Title:    fmt.Sprintf("Engineer %d", i),
			Company:  "Acme",
			Location: "Remote",
			Link:     fmt.Sprintf("https://example.com/jobs/view/%d", i),
			Identity: fmt.Sprintf("%d", i),
			PostedAt: &ts,
		}
	}
	return postings
}

func TestFilter_NoneSelectsNothing(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"none"}}
	c := newTestClassifier(provider)

	got := c.Filter(context.Background(), makePostings(6), "golang developer")
	if len(got) != 0 {
		t.Fatalf("expected 0 postings, got %d", len(got))
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 llm call, got %d", provider.calls)
	}
}

func TestFilter_IndexListSelectsOnlyThose(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"2, 5"}}
	c := newTestClassifier(provider)

	got := c.Filter(context.Background(), makePostings(6), "golang developer")
	if len(got) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(got))
	}
	// Newest first: index 2 (newer) before index 5.
	if got[0].Title != "Engineer 2" || got[1].Title != "Engineer 5" {
		t.Fatalf("unexpected selection: %q, %q", got[0].Title, got[1].Title)
	}
}

func TestFilter_IgnoresDuplicateAndOutOfRangeIndices(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"0, 0, 99, 1"}}
	c := newTestClassifier(provider)

	got := c.Filter(context.Background(), makePostings(4), "golang developer")
	if len(got) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(got))
	}
	if got[0].Title != "Engineer 0" || got[1].Title != "Engineer 1" {
		t.Fatalf("unexpected selection: %q, %q", got[0].Title, got[1].Title)
	}
}

func TestFilter_GarbledResponseFailsOpen(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"yes please"}}
	c := newTestClassifier(provider)

	postings := makePostings(6)
	got := c.Filter(context.Background(), postings, "golang developer")
	if len(got) != len(postings) {
		t.Fatalf("expected full batch of %d, got %d", len(postings), len(got))
	}
}

func TestFilter_ProviderErrorKeepsBatch(t *testing.T) {
	provider := &scriptedProvider{errs: []error{errors.New("connection reset")}}
	c := newTestClassifier(provider)

	postings := makePostings(3)
	got := c.Filter(context.Background(), postings, "golang developer")
	if len(got) != 3 {
		t.Fatalf("expected full batch of 3, got %d", len(got))
	}
}

func TestFilter_RateLimitAbandonsRemainingBatches(t *testing.T) {
	provider := &scriptedProvider{
		responses: []string{"0"},
		errs: []error{
			nil,
			&model.HTTPError{StatusCode: 429, Err: errors.New("too many requests")},
		},
	}
	c := newTestClassifier(provider)

	// 25 postings span two batches; the second hits the rate limit.
	got := c.Filter(context.Background(), makePostings(25), "golang developer")
	if provider.calls != 2 {
		t.Fatalf("expected 2 llm calls, got %d", provider.calls)
	}
	if len(got) != 1 {
		t.Fatalf("expected only first batch's selection (1), got %d", len(got))
	}
	if got[0].Title != "Engineer 0" {
		t.Fatalf("unexpected posting: %q", got[0].Title)
	}
}

func TestFilter_BatchesOfTwenty(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"none", "none", "none"}}
	c := newTestClassifier(provider)

	c.Filter(context.Background(), makePostings(45), "golang developer")
	if provider.calls != 3 {
		t.Fatalf("expected 3 llm calls for 45 postings, got %d", provider.calls)
	}
}

func TestFilter_ResortsNewestFirstAcrossBatches(t *testing.T) {
	// Second batch holds the newest posting; selections from both batches
	// must interleave back into chronological order.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	postings := makePostings(21)
	newest := base.Add(time.Hour)
	postings[20].PostedAt = &newest
	postings[20].Title = "Engineer 20"

	provider := &scriptedProvider{responses: []string{"0", "0"}}
	c := newTestClassifier(provider)

	got := c.Filter(context.Background(), postings, "golang developer")
	if len(got) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(got))
	}
	if got[0].Title != "Engineer 20" {
		t.Fatalf("expected newest posting first, got %q", got[0].Title)
	}
}

func TestFilter_PromptContainsEnumeratedEntries(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"none"}}
	c := newTestClassifier(provider)

	c.Filter(context.Background(), makePostings(2), "platform engineer")
	if len(provider.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(provider.prompts))
	}
	prompt := provider.prompts[0]
	for _, want := range []string{"platform engineer", "0: Engineer 0 at Acme (Remote)", "1: Engineer 1 at Acme (Remote)"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
