package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/diffanchor/diffanchor/pkg/models"
)

// Tally computes the per-stage and per-severity comment counts for the
// output artifact. Every known severity appears in the map, zero or not,
// so downstream consumers get a stable shape.
func Tally(comments []models.Comment) (byStage, bySeverity map[string]int) {
	byStage = make(map[string]int)
	bySeverity = make(map[string]int)
	for _, sev := range models.Severities() {
		bySeverity[string(sev)] = 0
	}

	for _, c := range comments {
		stage := c.Stage
		if stage == "" {
			stage = "unknown"
		}
		byStage[stage]++
		bySeverity[string(c.Severity)]++
	}
	return byStage, bySeverity
}

// Write marshals the run report. An empty path (or "-") writes to stdout.
// The report is written even after a failed submission so the counters stay
// available for diagnosis.
func Write(path string, r *models.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
