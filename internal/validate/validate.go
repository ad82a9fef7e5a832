package validate

import (
	"github.com/diffanchor/diffanchor/internal/diff"
	"github.com/diffanchor/diffanchor/internal/logging"
	"github.com/diffanchor/diffanchor/pkg/models"
)

// Result holds the findings that survived range validation.
type Result struct {
	Kept       []models.Finding
	OutOfRange int
	Downgraded int
}

// Validator classifies findings against the diff addressing index. Only
// lines actually introduced by the diff can legally anchor a comment.
type Validator struct {
	index  *diff.Index
	logger *logging.RunLogger
}

// NewValidator creates a validator over a parsed diff index.
func NewValidator(index *diff.Index, logger *logging.RunLogger) *Validator {
	return &Validator{index: index, logger: logger}
}

// Validate filters the findings:
//   - file absent from the index, or anchor line not added: dropped;
//   - multi-line finding fully inside a single hunk: kept as-is;
//   - multi-line finding whose head is in range but whose tail strays outside
//     the hunk: downgraded to a single-line comment without its suggestion
//     (a partial suggestion would rewrite code outside the diff, which the
//     platform rejects).
func (v *Validator) Validate(findings []models.Finding) Result {
	var res Result

	for _, f := range findings {
		file, ok := v.index.File(f.File)
		if !ok {
			res.OutOfRange++
			v.logger.Debugf("dropping %s finding %s:%d: file not in diff", f.Stage, f.File, f.Line)
			continue
		}

		if !f.MultiLine() {
			if !file.Added(f.Line) {
				res.OutOfRange++
				v.logger.Debugf("dropping %s finding %s:%d: line not added by diff", f.Stage, f.File, f.Line)
				continue
			}
			res.Kept = append(res.Kept, f)
			continue
		}

		switch {
		case file.ContainsRange(f.Line, f.EndLine):
			res.Kept = append(res.Kept, f)
		case file.Added(f.Line):
			f.Suggestion = nil
			f.EndLine = 0
			res.Kept = append(res.Kept, f)
			res.Downgraded++
			v.logger.Debugf("downgrading %s finding %s:%d: range tail outside diff", f.Stage, f.File, f.Line)
		default:
			res.OutOfRange++
			v.logger.Debugf("dropping %s finding %s:%d-%d: range outside diff", f.Stage, f.File, f.Line, f.EndLine)
		}
	}

	return res
}
