package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffanchor/diffanchor/pkg/models"
)

const sampleChecklist = `
categories:
  - name: logging
    items:
      - id: logtemp
        tier: 1
        pattern: 'UE_LOG\s*\(\s*LogTemp'
        severity: warning
        message: Use a project-specific log category instead of LogTemp.
      - id: ensure_msgf
        tier: 2
        severity: info
        message: Prefer ensureMsgf over bare ensure.
  - name: memory
    items:
      - id: raw_new
        tier: 1
        pattern: '\bnew\s+[AU][A-Z]'
        severity: error
        message: UObject-derived classes must be created via NewObject.
`

func TestParse_BuildsTable(t *testing.T) {
	table, err := Parse([]byte(sampleChecklist))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"logtemp", "ensure_msgf", "raw_new"}, table.IDs())

	r, ok := table.Lookup("logtemp")
	require.True(t, ok)
	assert.Equal(t, KindRegex, r.Kind)
	assert.Equal(t, models.SeverityWarning, r.Severity)
	assert.Equal(t, "logging", r.Category)
	assert.True(t, r.Pattern.MatchString(`UE_LOG(LogTemp, Warning, TEXT("x"));`))

	r, ok = table.Lookup("ensure_msgf")
	require.True(t, ok)
	assert.Equal(t, KindStructural, r.Kind)
	assert.Nil(t, r.Pattern)
}

func TestParse_InvalidRegexRejected(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  - name: broken
    items:
      - id: bad
        pattern: '('
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestParse_DuplicateIDRejected(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  - name: a
    items:
      - id: dup
  - name: b
    items:
      - id: dup
`))
	require.Error(t, err)
}

func TestParse_UnknownSeverityRejected(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  - name: a
    items:
      - id: x
        severity: catastrophic
`))
	require.Error(t, err)
}

func TestLookup_NilTable(t *testing.T) {
	var table *Table
	_, ok := table.Lookup("anything")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}
