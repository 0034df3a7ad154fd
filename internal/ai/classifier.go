package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"text/template"

	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/ratelimit"
)

// batchSize is the number of postings presented to the LLM per request.
const batchSize = 20

// RelevanceClassifier implements model.RelevanceFilter using an LLM.
// Classification is best-effort: a malformed response keeps the whole
// batch (false positives are cheaper than missed postings), while a
// rate-limit or quota error abandons the remaining batches for this
// cycle and returns whatever was classified so far.
type RelevanceClassifier struct {
	provider LLMProvider
	tmpl     *template.Template
	pacer    *ratelimit.Pacer
	logger   *slog.Logger
}

// NewRelevanceClassifier creates a classifier that keeps only postings
// the LLM judges relevant to the alert's keyword string.
func NewRelevanceClassifier(provider LLMProvider, tmpl *template.Template, pacer *ratelimit.Pacer, logger *slog.Logger) *RelevanceClassifier {
	return &RelevanceClassifier{
		provider: provider,
		tmpl:     tmpl,
		pacer:    pacer,
		logger:   logger,
	}
}

// Filter classifies postings in batches and returns the relevant subset,
// newest first.
func (c *RelevanceClassifier) Filter(ctx context.Context, postings []model.JobPosting, keyword string) []model.JobPosting {
	if len(postings) == 0 {
		return postings
	}

	var kept []model.JobPosting
	for start := 0; start < len(postings); start += batchSize {
		end := min(start+batchSize, len(postings))
		batch := postings[start:end]

		if err := c.pacer.Wait(ctx); err != nil {
			c.logger.Warn("classification cancelled", "error", err)
			break
		}

		selected, err := c.classifyBatch(ctx, batch, keyword)
		if err != nil {
			if isRateLimited(err) {
				c.logger.Warn("classifier rate limited, abandoning remaining batches",
					"classified", start,
					"remaining", len(postings)-start,
					"error", err,
				)
				break
			}
			// Any other failure keeps the batch.
			c.logger.Warn("classification failed, keeping batch", "batch_size", len(batch), "error", err)
			kept = append(kept, batch...)
			continue
		}

		kept = append(kept, selected...)
	}

	// Batches come back in request order, not chronological order.
	model.SortNewestFirst(kept)
	return kept
}

// classifyBatch sends one batch to the LLM and returns the selected postings.
func (c *RelevanceClassifier) classifyBatch(ctx context.Context, batch []model.JobPosting, keyword string) ([]model.JobPosting, error) {
	var entries strings.Builder
	for i, p := range batch {
		fmt.Fprintf(&entries, "%d: %s at %s (%s)\n", i, p.Title, p.Company, p.Location)
	}

	var promptBuf bytes.Buffer
	err := c.tmpl.Execute(&promptBuf, struct {
		Keyword string
		Entries string
	}{
		Keyword: keyword,
		Entries: entries.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := c.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return nil, fmt.Errorf("llm complete: %w", err)
	}

	indices, ok := parseSelection(raw, len(batch))
	if !ok {
		// Garbled response: fail open, keep the whole batch.
		c.logger.Warn("unparseable classifier response, keeping batch", "response", raw)
		return batch, nil
	}

	selected := make([]model.JobPosting, 0, len(indices))
	for _, idx := range indices {
		selected = append(selected, batch[idx])
	}
	return selected, nil
}

// parseSelection interprets the LLM response for a batch of n postings.
// "none" means an empty selection. A comma list yields the valid in-range
// indices, duplicates and out-of-range values dropped. A response with no
// parseable integers at all returns ok=false so the caller can fail open.
func parseSelection(raw string, n int) (indices []int, ok bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "none" {
		return nil, true
	}

	seen := make(map[int]bool)
	parsedAny := false
	for _, tok := range strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	}) {
		idx, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		parsedAny = true
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}

	if !parsedAny {
		return nil, false
	}
	return indices, true
}

// isRateLimited reports whether err is a rate-limit or quota signal from
// the provider.
func isRateLimited(err error) bool {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}
