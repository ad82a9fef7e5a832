package models

import "strings"

// Severity represents the severity level of a finding
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeverityInfo       Severity = "info"
	SeveritySuggestion Severity = "suggestion"
)

// severityRanks orders severities for budgeting: lower rank = kept first
var severityRanks = map[Severity]int{
	SeverityError:      0,
	SeverityWarning:    1,
	SeverityInfo:       2,
	SeveritySuggestion: 3,
}

// Rank returns the pruning rank of a severity. Unknown severities rank last.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return len(severityRanks)
}

// ParseSeverity normalizes a raw severity string to the enum.
// The second return value is false when the input is not a known severity.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := severityRanks[s]; ok {
		return s, true
	}
	return SeverityInfo, false
}

// Severities lists the known severities in rank order.
func Severities() []Severity {
	return []Severity{SeverityError, SeverityWarning, SeverityInfo, SeveritySuggestion}
}

// Finding is one issue reported by an upstream checker stage, anchored to
// new-file line numbers. EndLine == 0 means the finding is single-line.
type Finding struct {
	File       string   `json:"file"`
	Line       int      `json:"line"`
	EndLine    int      `json:"end_line,omitempty"`
	RuleID     string   `json:"rule_id"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion *string  `json:"suggestion,omitempty"`
	Stage      string   `json:"stage,omitempty"`

	// StageRank is the dedup tie-break priority assigned by the normalizer;
	// lower wins. Never serialized or shown to the platform.
	StageRank int `json:"-"`
}

// MultiLine reports whether the finding spans more than one line.
func (f *Finding) MultiLine() bool {
	return f.EndLine > f.Line
}

// Comment is one inline review comment in the platform payload shape.
// For multi-line comments Line is the last line of the range and StartLine
// the first; single-line comments leave StartLine at zero so it is omitted.
type Comment struct {
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Side      string `json:"side,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	StartSide string `json:"start_side,omitempty"`
	Body      string `json:"body"`

	// Carried for budgeting and reporting, not part of the wire payload.
	Severity Severity `json:"-"`
	Stage    string   `json:"-"`
	RuleID   string   `json:"-"`
}

// ReviewPayload is the single review submitted to the platform.
type ReviewPayload struct {
	CommitID string    `json:"commit_id,omitempty"`
	Body     string    `json:"body"`
	Event    string    `json:"event"`
	Comments []Comment `json:"comments"`
}

// Report is the per-run output artifact.
type Report struct {
	ReviewID          int64          `json:"review_id"`
	ReviewURL         string         `json:"review_url"`
	TotalFindings     int            `json:"total_findings"`
	PostedComments    int            `json:"posted_comments"`
	SkippedOutOfRange int            `json:"skipped_out_of_range"`
	SkippedDuplicate  int            `json:"skipped_duplicate"`
	SkippedOverLimit  int            `json:"skipped_over_limit"`
	ByStage           map[string]int `json:"by_stage"`
	BySeverity        map[string]int `json:"by_severity"`
	Warnings          []string       `json:"warnings,omitempty"`

	// Payload is only populated in dry-run mode so the would-be review
	// can be inspected without any network side effect.
	Payload *ReviewPayload `json:"payload,omitempty"`
}
