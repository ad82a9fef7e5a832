package render

import (
	"fmt"
	"strings"

	"github.com/diffanchor/diffanchor/pkg/models"
)

// Capability is the tri-state multi-line suggestion support flag resolved
// once per run from the platform version probe.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilitySupported
	CapabilityUnsupported
)

func (c Capability) String() string {
	switch c {
	case CapabilitySupported:
		return "supported"
	case CapabilityUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// DefaultChunkLines caps the size of one applyable suggestion block;
// larger suggestions are split into sequential chunks.
const DefaultChunkLines = 20

const sideRight = "RIGHT"

var severityLabels = map[models.Severity]string{
	models.SeverityError:      "[ERROR]",
	models.SeverityWarning:    "[WARNING]",
	models.SeverityInfo:       "[INFO]",
	models.SeveritySuggestion: "[SUGGESTION]",
}

func severityLabel(s models.Severity) string {
	if l, ok := severityLabels[s]; ok {
		return l
	}
	return "[INFO]"
}

// Renderer converts validated findings into platform comment shapes.
type Renderer struct {
	multiline  Capability
	chunkLines int
}

// NewRenderer creates a renderer for the given capability. An unknown
// capability is treated optimistically as supported; the submitter falls back
// reactively if the platform rejects multi-line fields. chunkLines <= 0 uses
// the default ceiling.
func NewRenderer(multiline Capability, chunkLines int) *Renderer {
	if chunkLines <= 0 {
		chunkLines = DefaultChunkLines
	}
	return &Renderer{multiline: multiline, chunkLines: chunkLines}
}

// MultilineEnabled reports whether multi-line positional fields will be used.
func (r *Renderer) MultilineEnabled() bool {
	return r.multiline != CapabilityUnsupported
}

// RenderAll renders every finding in order.
func (r *Renderer) RenderAll(findings []models.Finding) []models.Comment {
	var comments []models.Comment
	for _, f := range findings {
		comments = append(comments, r.Render(f)...)
	}
	return comments
}

// Render converts one finding into one or more comments. Oversized
// multi-line suggestions are split into sequential chunks, each anchored at
// its own sub-range; everything else renders to exactly one comment.
func (r *Renderer) Render(f models.Finding) []models.Comment {
	if f.Suggestion != nil && f.MultiLine() && r.MultilineEnabled() {
		return r.renderSuggestionChunks(f)
	}

	c := models.Comment{
		Path:     f.File,
		Line:     f.Line,
		Side:     sideRight,
		Severity: f.Severity,
		Stage:    f.Stage,
		RuleID:   f.RuleID,
	}

	var b strings.Builder
	b.WriteString(header(f))

	switch {
	case f.Suggestion != nil && !f.MultiLine():
		// Single-line applyable suggestion.
		b.WriteString("\n\n")
		b.WriteString(suggestionBlock(*f.Suggestion))

	case f.Suggestion != nil && f.MultiLine():
		// Multi-line suggestion on a platform without multi-line support:
		// degrade to a read-only block anchored at the first line.
		fmt.Fprintf(&b, "\n\nSuggested replacement for lines %d-%d:\n\n```\n%s\n```\n",
			f.Line, f.EndLine, *f.Suggestion)
		b.WriteString("\n*This server version does not support applying multi-line suggestions inline.*")

	case f.MultiLine() && r.MultilineEnabled():
		c.StartLine = f.Line
		c.StartSide = sideRight
		c.Line = f.EndLine

	case f.MultiLine():
		// Plain multi-line note degraded to its anchor line.
		fmt.Fprintf(&b, "\n\n*Applies to lines %d-%d.*", f.Line, f.EndLine)
	}

	c.Body = b.String()
	return []models.Comment{c}
}

// renderSuggestionChunks splits a multi-line suggestion into chunks no longer
// than the ceiling, distributing both the replacement lines and the covered
// source range evenly. Every chunk needs at least one covered source line to
// anchor to, so the chunk count never exceeds the covered line count.
func (r *Renderer) renderSuggestionChunks(f models.Finding) []models.Comment {
	sugLines := strings.Split(strings.TrimRight(*f.Suggestion, "\n"), "\n")
	covered := f.EndLine - f.Line + 1

	n := (len(sugLines) + r.chunkLines - 1) / r.chunkLines
	if n > covered {
		n = covered
	}
	if n < 1 {
		n = 1
	}

	origPer, origRem := covered/n, covered%n
	sugPer, sugRem := len(sugLines)/n, len(sugLines)%n

	comments := make([]models.Comment, 0, n)
	origPos := f.Line
	sugPos := 0

	for i := 0; i < n; i++ {
		origSize := origPer
		if i < origRem {
			origSize++
		}
		sugSize := sugPer
		if i < sugRem {
			sugSize++
		}

		chunk := f
		chunk.Line = origPos
		chunk.EndLine = origPos + origSize - 1
		text := strings.Join(sugLines[sugPos:sugPos+sugSize], "\n")

		var b strings.Builder
		b.WriteString(header(f))
		if n > 1 {
			fmt.Fprintf(&b, "\n\n*Suggestion part %d/%d.*", i+1, n)
		}
		b.WriteString("\n\n")
		b.WriteString(suggestionBlock(text))

		c := models.Comment{
			Path:     f.File,
			Side:     sideRight,
			Body:     b.String(),
			Severity: f.Severity,
			Stage:    f.Stage,
			RuleID:   f.RuleID,
		}
		if chunk.EndLine > chunk.Line {
			c.StartLine = chunk.Line
			c.StartSide = sideRight
			c.Line = chunk.EndLine
		} else {
			c.Line = chunk.Line
		}
		comments = append(comments, c)

		origPos += origSize
		sugPos += sugSize
	}

	return comments
}

// header builds the severity/rule line plus the finding message.
func header(f models.Finding) string {
	var b strings.Builder
	if f.RuleID != "" {
		fmt.Fprintf(&b, "**%s** `%s`", severityLabel(f.Severity), f.RuleID)
	} else {
		fmt.Fprintf(&b, "**%s**", severityLabel(f.Severity))
	}
	if f.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(f.Message)
	}
	return b.String()
}

// suggestionBlock wraps replacement text in the platform's applyable
// suggestion fence.
func suggestionBlock(text string) string {
	return fmt.Sprintf("```suggestion\n%s\n```", strings.TrimRight(text, "\n"))
}
