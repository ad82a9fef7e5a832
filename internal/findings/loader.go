package findings

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kaptinlin/jsonrepair"

	"github.com/diffanchor/diffanchor/internal/logging"
	"github.com/diffanchor/diffanchor/internal/ruleset"
	"github.com/diffanchor/diffanchor/pkg/models"
)

// DefaultStageOrder ranks upstream checker stages by descending certainty;
// earlier stages win dedup ties.
var DefaultStageOrder = []string{"pattern", "format", "static-analysis", "semantic"}

// StageInput names one upstream finding file and the stage that produced it.
type StageInput struct {
	Stage string
	Path  string
}

// rawFinding mirrors the upstream JSON shape. The semantic stage reports a
// category instead of a rule id, and may omit severity entirely.
type rawFinding struct {
	File       string  `json:"file"`
	Line       int     `json:"line"`
	EndLine    int     `json:"end_line"`
	RuleID     string  `json:"rule_id"`
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Message    string  `json:"message"`
	Suggestion *string `json:"suggestion"`
}

// Loader normalizes heterogeneous per-stage finding files into models.Finding
// values tagged with provenance and a dedup priority rank.
type Loader struct {
	ranks  map[string]int
	nextRk int
	rules  *ruleset.Table
	logger *logging.RunLogger
}

// NewLoader builds a Loader. stageOrder assigns priority ranks (index order,
// lower = higher priority); stages not listed rank after all known ones.
// rules may be nil; when present it supplies severity and message defaults
// for findings that name a known rule id.
func NewLoader(stageOrder []string, rules *ruleset.Table, logger *logging.RunLogger) *Loader {
	ranks := make(map[string]int, len(stageOrder))
	for i, s := range stageOrder {
		ranks[s] = i
	}
	return &Loader{
		ranks:  ranks,
		nextRk: len(stageOrder),
		rules:  rules,
		logger: logger,
	}
}

// Result carries the normalized findings plus warnings for every input that
// was skipped or degraded. Partial upstream failures never abort the run.
type Result struct {
	Findings []models.Finding
	Stages   []string
	Warnings []string
}

// Load reads every stage input in order. Missing or unreadable files are
// treated as empty lists with a recorded warning.
func (l *Loader) Load(inputs []StageInput) Result {
	var res Result

	for _, in := range inputs {
		res.Stages = append(res.Stages, in.Stage)

		raws, warns := l.loadFile(in)
		res.Warnings = append(res.Warnings, warns...)

		rank := l.stageRank(in.Stage)
		for _, raw := range raws {
			f, warn := l.normalize(raw, in.Stage, rank)
			if warn != "" {
				res.Warnings = append(res.Warnings, warn)
			}
			if f != nil {
				res.Findings = append(res.Findings, *f)
			}
		}
	}

	for _, w := range res.Warnings {
		l.logger.Warnf("%s", w)
	}
	return res
}

func (l *Loader) loadFile(in StageInput) ([]rawFinding, []string) {
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, []string{fmt.Sprintf("stage %s: findings file unreadable, treating as empty: %s", in.Stage, in.Path)}
	}
	if len(data) == 0 {
		return nil, nil
	}

	var raws []rawFinding
	if err := json.Unmarshal(data, &raws); err == nil {
		return raws, nil
	}

	// The semantic stage relays model output and occasionally produces
	// slightly broken JSON; attempt a repair pass before giving up.
	repaired, repErr := jsonrepair.JSONRepair(string(data))
	if repErr == nil {
		if err := json.Unmarshal([]byte(repaired), &raws); err == nil {
			return raws, []string{fmt.Sprintf("stage %s: repaired malformed JSON in %s", in.Stage, in.Path)}
		}
	}
	return nil, []string{fmt.Sprintf("stage %s: unparseable findings file, treating as empty: %s", in.Stage, in.Path)}
}

func (l *Loader) normalize(raw rawFinding, stage string, rank int) (*models.Finding, string) {
	if raw.File == "" || raw.Line <= 0 {
		return nil, fmt.Sprintf("stage %s: dropping finding without a file/line anchor", stage)
	}

	ruleID := raw.RuleID
	if ruleID == "" {
		ruleID = raw.Category
	}

	f := models.Finding{
		File:       raw.File,
		Line:       raw.Line,
		RuleID:     ruleID,
		Message:    raw.Message,
		Suggestion: raw.Suggestion,
		Stage:      stage,
		StageRank:  rank,
	}

	// end_line equal to line carries no extra information; treat as single-line.
	var warn string
	if raw.EndLine > raw.Line {
		f.EndLine = raw.EndLine
	} else if raw.EndLine != 0 && raw.EndLine != raw.Line {
		warn = fmt.Sprintf("stage %s: %s:%d end_line %d precedes line, ignoring it", stage, raw.File, raw.Line, raw.EndLine)
	}

	rule, known := l.rules.Lookup(ruleID)

	if raw.Severity != "" {
		sev, ok := models.ParseSeverity(raw.Severity)
		if !ok {
			warn = fmt.Sprintf("stage %s: %s:%d unknown severity %q, using info", stage, raw.File, raw.Line, raw.Severity)
		}
		f.Severity = sev
	} else if known && rule.Severity != "" {
		f.Severity = rule.Severity
	} else {
		f.Severity = models.SeverityInfo
	}

	if f.Message == "" && known {
		f.Message = rule.Message
	}

	return &f, warn
}

func (l *Loader) stageRank(stage string) int {
	if r, ok := l.ranks[stage]; ok {
		return r
	}
	// Unknown stages rank behind every configured one, in first-seen order.
	l.ranks[stage] = l.nextRk
	l.nextRk++
	return l.ranks[stage]
}
