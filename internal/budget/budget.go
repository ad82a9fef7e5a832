package budget

import (
	"sort"

	"github.com/diffanchor/diffanchor/pkg/models"
)

// DefaultMaxComments is the platform's per-review inline comment limit.
const DefaultMaxComments = 50

// Result is the pruned comment list plus the omission count for the summary.
type Result struct {
	Comments []models.Comment
	Omitted  int
}

// Prune caps the comment list at max. When the list exceeds the cap, the
// highest-value subset is selected by severity rank (error first, suggestion
// last), ties broken by original position; the survivors are then restored to
// their original file-locality order. max <= 0 disables the cap.
func Prune(comments []models.Comment, max int) Result {
	if max <= 0 || len(comments) <= max {
		return Result{Comments: comments}
	}

	order := make([]int, len(comments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return comments[order[a]].Severity.Rank() < comments[order[b]].Severity.Rank()
	})

	keep := make(map[int]bool, max)
	for _, idx := range order[:max] {
		keep[idx] = true
	}

	kept := make([]models.Comment, 0, max)
	for i, c := range comments {
		if keep[i] {
			kept = append(kept, c)
		}
	}

	return Result{Comments: kept, Omitted: len(comments) - max}
}
