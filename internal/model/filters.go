package model

import (
	"fmt"
	"net/url"
	"strings"
)

// FilterSpec holds a subscriber's optional search filters. Empty fields mean
// "no constraint on this axis". Values are the source's own filter codes;
// the option tables below map human-readable names to them.
type FilterSpec struct {
	Experience []string `json:"experience,omitempty"`  // multi-select, codes "1".."6"
	JobTypes   []string `json:"job_types,omitempty"`   // multi-select, codes F/P/C/T/I
	DatePosted string   `json:"date_posted,omitempty"` // at most one bucket
	Workplace  string   `json:"workplace,omitempty"`   // at most one type
}

// Source query-parameter codes, keyed by the names shown to users.
var (
	ExperienceLevels = map[string]string{
		"internship":       "1",
		"entry level":      "2",
		"associate":        "3",
		"mid-senior level": "4",
		"director":         "5",
		"executive":        "6",
	}
	JobTypes = map[string]string{
		"full-time":  "F",
		"part-time":  "P",
		"contract":   "C",
		"temporary":  "T",
		"internship": "I",
	}
	DatePostedBuckets = map[string]string{
		"past 24 hours": "r86400",
		"past week":     "r604800",
		"past month":    "r2592000",
	}
	WorkplaceTypes = map[string]string{
		"on-site": "1",
		"remote":  "2",
		"hybrid":  "3",
	}
)

// Params renders the filters as source query parameters. Multi-value axes are
// comma-joined; unset axes are omitted.
func (f FilterSpec) Params() url.Values {
	v := url.Values{}
	if len(f.Experience) > 0 {
		v.Set("f_E", strings.Join(f.Experience, ","))
	}
	if len(f.JobTypes) > 0 {
		v.Set("f_JT", strings.Join(f.JobTypes, ","))
	}
	if f.DatePosted != "" {
		v.Set("f_TPR", f.DatePosted)
	}
	if f.Workplace != "" {
		v.Set("f_WT", f.Workplace)
	}
	return v
}

// IsZero reports whether no axis is constrained.
func (f FilterSpec) IsZero() bool {
	return len(f.Experience) == 0 && len(f.JobTypes) == 0 && f.DatePosted == "" && f.Workplace == ""
}

// lookupCode resolves a case-insensitive option name against a code table.
func lookupCode(table map[string]string, name string) (string, error) {
	if code, ok := table[strings.ToLower(strings.TrimSpace(name))]; ok {
		return code, nil
	}
	options := make([]string, 0, len(table))
	for k := range table {
		options = append(options, k)
	}
	return "", fmt.Errorf("unknown option %q (valid: %s)", name, strings.Join(options, ", "))
}

// ParseFilterSpec builds a FilterSpec from human-readable option names, as
// collected from CLI flags or config.
func ParseFilterSpec(experience, jobTypes []string, datePosted, workplace string) (FilterSpec, error) {
	var f FilterSpec
	for _, name := range experience {
		code, err := lookupCode(ExperienceLevels, name)
		if err != nil {
			return FilterSpec{}, fmt.Errorf("experience: %w", err)
		}
		f.Experience = append(f.Experience, code)
	}
	for _, name := range jobTypes {
		code, err := lookupCode(JobTypes, name)
		if err != nil {
			return FilterSpec{}, fmt.Errorf("job type: %w", err)
		}
		f.JobTypes = append(f.JobTypes, code)
	}
	if datePosted != "" {
		code, err := lookupCode(DatePostedBuckets, datePosted)
		if err != nil {
			return FilterSpec{}, fmt.Errorf("date posted: %w", err)
		}
		f.DatePosted = code
	}
	if workplace != "" {
		code, err := lookupCode(WorkplaceTypes, workplace)
		if err != nil {
			return FilterSpec{}, fmt.Errorf("workplace: %w", err)
		}
		f.Workplace = code
	}
	return f, nil
}
