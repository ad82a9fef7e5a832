package ruleset

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/diffanchor/diffanchor/pkg/models"
)

// Kind distinguishes how a rule is matched by its upstream checker. The
// matcher itself is never executed here; findings arrive pre-computed and the
// table only supplies identity, severity, and message defaults.
type Kind string

const (
	KindRegex      Kind = "regex"
	KindStructural Kind = "structural"
)

// Rule is one validated checklist entry.
type Rule struct {
	ID       string
	Kind     Kind
	Pattern  *regexp.Regexp // non-nil only for KindRegex
	Severity models.Severity
	Message  string
	Category string
}

// Table is an immutable rule lookup built once at startup.
type Table struct {
	rules map[string]Rule
	order []string
}

type checklistFile struct {
	Categories []struct {
		Name  string `yaml:"name"`
		Items []struct {
			ID       string `yaml:"id"`
			Tier     int    `yaml:"tier"`
			Pattern  string `yaml:"pattern"`
			Severity string `yaml:"severity"`
			Message  string `yaml:"message"`
		} `yaml:"items"`
	} `yaml:"categories"`
}

// Load reads and validates a checklist YAML file. Every regex pattern must
// compile; duplicate rule ids are rejected.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checklist: %w", err)
	}
	return Parse(data)
}

// Parse builds a Table from checklist YAML content.
func Parse(data []byte) (*Table, error) {
	var cl checklistFile
	if err := yaml.Unmarshal(data, &cl); err != nil {
		return nil, fmt.Errorf("parsing checklist: %w", err)
	}

	t := &Table{rules: make(map[string]Rule)}
	for _, cat := range cl.Categories {
		for _, item := range cat.Items {
			if item.ID == "" {
				return nil, fmt.Errorf("checklist category %q has an item without an id", cat.Name)
			}
			if _, dup := t.rules[item.ID]; dup {
				return nil, fmt.Errorf("duplicate rule id %q", item.ID)
			}

			r := Rule{
				ID:       item.ID,
				Kind:     KindStructural,
				Message:  item.Message,
				Category: cat.Name,
			}
			if item.Pattern != "" {
				re, err := regexp.Compile(item.Pattern)
				if err != nil {
					return nil, fmt.Errorf("invalid regex for rule %q: %w", item.ID, err)
				}
				r.Kind = KindRegex
				r.Pattern = re
			}
			if item.Severity != "" {
				sev, ok := models.ParseSeverity(item.Severity)
				if !ok {
					return nil, fmt.Errorf("unknown severity %q for rule %q", item.Severity, item.ID)
				}
				r.Severity = sev
			}

			t.rules[item.ID] = r
			t.order = append(t.order, item.ID)
		}
	}
	return t, nil
}

// Lookup returns the rule for an id.
func (t *Table) Lookup(id string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	r, ok := t.rules[id]
	return r, ok
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// IDs lists rule ids in file order.
func (t *Table) IDs() []string {
	if t == nil {
		return nil
	}
	return t.order
}
