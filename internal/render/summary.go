package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diffanchor/diffanchor/pkg/models"
)

const summaryTitle = "## Diff Anchor Review"

// topRuleCount limits the per-rule breakdown in the summary table.
const topRuleCount = 10

// BuildSummary renders the top-level review body: severity totals, the most
// frequent rules, the stages that ran, and the omission note when budgeting
// pruned comments.
func BuildSummary(comments []models.Comment, stages []string, omitted int) string {
	if len(comments) == 0 && omitted == 0 {
		return summaryTitle + "\n\nNo issues found. :white_check_mark:"
	}

	sevCounts := make(map[models.Severity]int)
	ruleCounts := make(map[string]int)
	for _, c := range comments {
		sevCounts[c.Severity]++
		rule := c.RuleID
		if rule == "" {
			rule = "unknown"
		}
		ruleCounts[rule]++
	}

	lines := []string{summaryTitle, ""}
	lines = append(lines, fmt.Sprintf("**%d** issues found:", len(comments)), "")

	for _, sev := range models.Severities() {
		if n := sevCounts[sev]; n > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %d", severityLabel(sev), n))
		}
	}

	if len(ruleCounts) > 0 {
		type ruleCount struct {
			id string
			n  int
		}
		ranked := make([]ruleCount, 0, len(ruleCounts))
		for id, n := range ruleCounts {
			ranked = append(ranked, ruleCount{id, n})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].n != ranked[j].n {
				return ranked[i].n > ranked[j].n
			}
			return ranked[i].id < ranked[j].id
		})
		if len(ranked) > topRuleCount {
			ranked = ranked[:topRuleCount]
		}

		lines = append(lines, "", "**By rule:**")
		for _, rc := range ranked {
			lines = append(lines, fmt.Sprintf("- `%s`: %d", rc.id, rc.n))
		}
	}

	if omitted > 0 {
		lines = append(lines, "",
			fmt.Sprintf("_%d additional lower-severity comments were omitted to stay within the review comment limit._", omitted))
	}

	if len(stages) > 0 {
		lines = append(lines, "", fmt.Sprintf("*Stages: %s*", strings.Join(stages, ", ")))
	}

	return strings.Join(lines, "\n")
}
