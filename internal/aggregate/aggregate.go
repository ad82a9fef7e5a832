package aggregate

import (
	"sort"

	"github.com/diffanchor/diffanchor/pkg/models"
)

// identityKey identifies one observation: the same rule firing on the same
// line, regardless of which stage reported it.
type identityKey struct {
	file   string
	line   int
	ruleID string
}

// Result holds the deduplicated findings in (file, line) order.
type Result struct {
	Findings   []models.Finding
	Duplicates int
}

// Dedup collapses findings that share an identity key, keeping the one with
// the lowest stage rank (ties go to the earliest arrival). Distinct rule ids
// on the same line stay independent. The output is stably sorted by
// (file, line) so the review reads in file-locality order; severity plays no
// part here, only at the budgeting stage.
func Dedup(findings []models.Finding) Result {
	var res Result

	index := make(map[identityKey]int)
	kept := make([]models.Finding, 0, len(findings))

	for _, f := range findings {
		key := identityKey{file: f.File, line: f.Line, ruleID: f.RuleID}
		at, seen := index[key]
		if !seen {
			index[key] = len(kept)
			kept = append(kept, f)
			continue
		}

		res.Duplicates++
		if f.StageRank < kept[at].StageRank {
			// Higher-priority stage wins; it replaces the earlier arrival
			// in place so ordering stays stable.
			kept[at] = f
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].File != kept[j].File {
			return kept[i].File < kept[j].File
		}
		return kept[i].Line < kept[j].Line
	})

	res.Findings = kept
	return res
}
