// Package canonical derives stable dedup keys from the inconsistent links and
// text the job source serves, and converts its relative-time strings to
// absolute times.
package canonical

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Job-id extraction patterns, tried in order. The source embeds the same
// numeric id in several URL shapes depending on where the link was scraped.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/jobs/view/(\d+)`),
	regexp.MustCompile(`/jobs/(\d+)/`),
	regexp.MustCompile(`job[_-](\d+)`),
	regexp.MustCompile(`jobId[=:](\d+)`),
}

// Identity returns the primary dedup key for a posting link. It extracts the
// embedded job id when one is present; otherwise it falls back to the URL
// lower-cased with query string, fragment, and trailing slash stripped.
// Deterministic and total: unparseable input degrades to the fallback.
func Identity(link string) string {
	for _, p := range idPatterns {
		if m := p.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	normalized := strings.ToLower(link)
	if i := strings.IndexByte(normalized, '?'); i >= 0 {
		normalized = normalized[:i]
	}
	if i := strings.IndexByte(normalized, '#'); i >= 0 {
		normalized = normalized[:i]
	}
	return strings.TrimRight(normalized, "/")
}

// asciiFold decomposes accented characters and drops anything non-ASCII.
var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Text normalizes free text for use as a dedup key component: strips
// diacritics and non-ASCII runes, collapses whitespace runs, lower-cases,
// trims.
func Text(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

var leadingInt = regexp.MustCompile(`\d+`)

// Relative-time units the source uses, largest first so "year" is not
// shadowed by a substring match.
var units = []struct {
	word string
	d    time.Duration
}{
	{"year", 365 * 24 * time.Hour},
	{"month", 30 * 24 * time.Hour},
	{"week", 7 * 24 * time.Hour},
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
}

// ParseRelativeTime converts the source's "X days ago" style text to an
// absolute time relative to now. The leading integer defaults to 1 when
// absent. Returns ok=false when no unit word is found; callers treat such
// postings as most recent so they are never suppressed by accident.
func ParseRelativeTime(s string, now time.Time) (time.Time, bool) {
	lowered := strings.ToLower(strings.TrimSpace(s))
	for _, u := range units {
		if !strings.Contains(lowered, u.word) {
			continue
		}
		n := 1
		if m := leadingInt.FindString(lowered); m != "" {
			if parsed, err := strconv.Atoi(m); err == nil {
				n = parsed
			}
		}
		return now.Add(-time.Duration(n) * u.d), true
	}
	return now, false
}
