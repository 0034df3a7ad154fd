package canonical

import (
	"testing"
	"time"
)

func TestIdentityExtractsJobID(t *testing.T) {
	cases := []struct {
		link string
		want string
	}{
		{"https://www.example.com/jobs/view/4012345678", "4012345678"},
		{"https://www.example.com/jobs/view/4012345678/?refId=abc", "4012345678"},
		{"https://www.example.com/jobs/123456/apply", "123456"},
		{"https://tracker.example.com/r?job_987654=1", "987654"},
		{"https://www.example.com/posting?jobId=555000", "555000"},
	}
	for _, tc := range cases {
		if got := Identity(tc.link); got != tc.want {
			t.Errorf("Identity(%q) = %q, want %q", tc.link, got, tc.want)
		}
	}
}

func TestIdentityFallbackStripsQueryAndFragment(t *testing.T) {
	a := Identity("https://Boards.example.com/acme/senior-engineer?utm_source=x&trk=guest")
	b := Identity("https://boards.example.com/acme/senior-engineer#apply")
	c := Identity("https://boards.example.com/acme/senior-engineer/")

	if a != b || b != c {
		t.Errorf("fallback identities differ: %q, %q, %q", a, b, c)
	}
	if a != "https://boards.example.com/acme/senior-engineer" {
		t.Errorf("unexpected fallback identity %q", a)
	}
}

func TestIdentityDeterministic(t *testing.T) {
	link := "https://www.example.com/jobs/view/777"
	if Identity(link) != Identity(link) {
		t.Error("Identity is not deterministic for equal input")
	}
}

func TestTextNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"São Paulo  Engineer", "sao paulo engineer"},
		{"  Über\tCool   GmbH ", "uber cool gmbh"},
		{"Zürich", "zurich"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"3 hours ago", now.Add(-3 * time.Hour), true},
		{"2 days ago", now.Add(-48 * time.Hour), true},
		{"1 week ago", now.Add(-7 * 24 * time.Hour), true},
		{"2 months ago", now.Add(-60 * 24 * time.Hour), true},
		{"1 year ago", now.Add(-365 * 24 * time.Hour), true},
		{"an hour ago", now.Add(-time.Hour), true}, // no leading integer defaults to 1
		{"Just now", now, false},
		{"", now, false},
	}
	for _, tc := range cases {
		got, ok := ParseRelativeTime(tc.in, now)
		if ok != tc.wantOK {
			t.Errorf("ParseRelativeTime(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseRelativeTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
