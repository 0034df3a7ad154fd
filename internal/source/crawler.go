package source

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/alwinjoseph/jobquest/internal/canonical"
	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/ratelimit"
)

// ResultsPerPage is the source's fixed page size.
const ResultsPerPage = 25

// Crawler pages through search results until the source runs out, parsing
// result cards into postings and deduplicating within the batch.
type Crawler struct {
	fetcher PageFetcher
	pacer   *ratelimit.Pacer
	logger  *slog.Logger
	now     func() time.Time
}

// NewCrawler wires a crawler with its page fetcher and politeness pacer.
func NewCrawler(fetcher PageFetcher, pacer *ratelimit.Pacer, logger *slog.Logger) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		pacer:   pacer,
		logger:  logger,
		now:     time.Now,
	}
}

// Crawl fetches pages starting at offset 0 and returns the deduplicated
// postings sorted newest first. Termination, checked in order per page:
// q.MaxPages reached, zero cards parsed (natural end of results), a 400
// response (the source's pagination ceiling), or any other fetch failure.
// Results gathered before a failure are always kept; an error is returned
// only when the very first page fails.
func (c *Crawler) Crawl(ctx context.Context, q model.Query) ([]model.JobPosting, error) {
	var postings []model.JobPosting
	seenIdentities := make(map[string]struct{})
	seenPairs := make(map[model.CanonicalPair]struct{})

	for page := 0; q.MaxPages == 0 || page < q.MaxPages; page++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return postings, err
		}

		offset := page * ResultsPerPage
		body, err := c.fetcher.FetchPage(ctx, q, offset)
		if err != nil {
			var httpErr *model.HTTPError
			if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest {
				// The source rejects offsets past its pagination ceiling;
				// treat as a normal end of results.
				c.logger.Debug("pagination ceiling reached", "offset", offset)
				break
			}
			c.logger.Warn("page fetch failed, keeping results gathered so far",
				"offset", offset,
				"pages", page,
				"error", err,
			)
			if page == 0 {
				return nil, err
			}
			break
		}

		cards, parsed := c.parsePage(body, seenIdentities, seenPairs)
		if cards == 0 {
			c.logger.Debug("no result cards on page", "page", page)
			break
		}
		postings = append(postings, parsed...)
	}

	model.SortNewestFirst(postings)
	return postings, nil
}

// parsePage extracts every result card on a page. Entries with missing
// required fields are skipped individually; entries already seen in this
// crawl by identity or canonical (title, company) pair are dropped. Returns
// the raw card count so the caller can distinguish an empty page from a page
// of duplicates.
func (c *Crawler) parsePage(
	body []byte,
	seenIdentities map[string]struct{},
	seenPairs map[model.CanonicalPair]struct{},
) (int, []model.JobPosting) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("page parse failed", "error", err)
		return 0, nil
	}

	var parsed []model.JobPosting
	cards := doc.Find("div.base-card")
	cards.Each(func(_ int, card *goquery.Selection) {
		posting, ok := c.parseCard(card)
		if !ok {
			return
		}

		pair := model.CanonicalPair{Title: posting.CanonicalTitle, Company: posting.CanonicalCompany}
		if _, dup := seenIdentities[posting.Identity]; dup {
			return
		}
		if _, dup := seenPairs[pair]; dup {
			return
		}
		seenIdentities[posting.Identity] = struct{}{}
		seenPairs[pair] = struct{}{}
		parsed = append(parsed, posting)
	})

	return cards.Length(), parsed
}

// parseCard extracts one posting from a result card. Returns ok=false when a
// required field is missing so the entry is skipped without failing the page.
func (c *Crawler) parseCard(card *goquery.Selection) (model.JobPosting, bool) {
	link, exists := card.Find("a.base-card__full-link").Attr("href")
	if !exists {
		return model.JobPosting{}, false
	}
	title := strings.TrimSpace(card.Find("h3.base-search-card__title").Text())
	company := strings.TrimSpace(card.Find("h4.base-search-card__subtitle").Text())
	location := strings.TrimSpace(card.Find("span.job-search-card__location").Text())
	if title == "" || company == "" {
		return model.JobPosting{}, false
	}

	datePosted := strings.TrimSpace(card.Find("time.job-search-card__listdate").Text())
	if datePosted == "" {
		datePosted = strings.TrimSpace(card.Find("time").First().Text())
	}

	cleanLink := stripTracking(link)
	posting := model.JobPosting{
		Title:            title,
		Company:          company,
		Location:         location,
		DatePosted:       datePosted,
		Link:             cleanLink,
		Identity:         canonical.Identity(cleanLink),
		CanonicalTitle:   canonical.Text(title),
		CanonicalCompany: canonical.Text(company),
	}
	if postedAt, ok := canonical.ParseRelativeTime(datePosted, c.now()); ok {
		posting.PostedAt = &postedAt
	}
	return posting, true
}
