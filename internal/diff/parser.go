package diff

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// HunkRange is one contiguous region of new-file lines visible in a hunk,
// inclusive on both ends. Ranges within a file never overlap and ascend.
type HunkRange struct {
	Start int
	End   int
}

// Contains reports whether the whole [start, end] span lies inside the range.
func (h HunkRange) Contains(start, end int) bool {
	return start >= h.Start && end <= h.End
}

// FileDiff holds the addressable lines of a single changed file.
// AddedLines maps new-file line numbers to their content; Hunks records the
// full visible span of each hunk (context and added lines), which is what the
// platform treats as commentable.
type FileDiff struct {
	Path       string
	AddedLines map[int]string
	Hunks      []HunkRange
}

// Added reports whether the given new-file line was introduced by the diff.
func (f *FileDiff) Added(line int) bool {
	_, ok := f.AddedLines[line]
	return ok
}

// ContainsRange reports whether [start, end] lies entirely within a single hunk.
func (f *FileDiff) ContainsRange(start, end int) bool {
	for _, h := range f.Hunks {
		if h.Contains(start, end) {
			return true
		}
	}
	return false
}

// AddedLineNumbers returns the added line numbers in ascending order.
func (f *FileDiff) AddedLineNumbers() []int {
	nums := make([]int, 0, len(f.AddedLines))
	for n := range f.AddedLines {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Index is the per-file addressing map built from one unified diff.
type Index struct {
	files map[string]*FileDiff
	paths []string
}

// File looks up the diff data for a path.
func (ix *Index) File(path string) (*FileDiff, bool) {
	f, ok := ix.files[path]
	return f, ok
}

// Paths returns the indexed file paths in first-seen order.
func (ix *Index) Paths() []string {
	return ix.paths
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	return len(ix.files)
}

var (
	diffMarkerRe = regexp.MustCompile(`^diff --git `)
	plusHeaderRe = regexp.MustCompile(`^\+\+\+ "?b/(.*?)"?$`)
	minusHeader  = "--- "
	devNullPlus  = "+++ /dev/null"
	hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
	binaryRe     = regexp.MustCompile(`^Binary files .* differ$`)
)

// Parser builds an addressing Index from raw unified diff text.
type Parser struct{}

// NewParser creates a new diff parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse scans unified diff text into an Index. It never fails: unparseable
// input simply yields an empty index, which later drops every finding.
func (p *Parser) Parse(diffText string) *Index {
	ix := &Index{files: make(map[string]*FileDiff)}

	var current *FileDiff
	inHeader := false
	inHunk := false
	cursor := 0

	// Hunk accumulation state: start plus visible (context + added) count.
	hunkStart := 0
	hunkVisible := 0
	hunkOpen := false

	flushHunk := func() {
		if !hunkOpen || current == nil {
			hunkOpen = false
			return
		}
		end := hunkStart + hunkVisible - 1
		if end < hunkStart {
			end = hunkStart
		}
		current.Hunks = append(current.Hunks, HunkRange{Start: hunkStart, End: end})
		hunkOpen = false
	}

	lines := strings.Split(diffText, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for _, raw := range lines {
		if diffMarkerRe.MatchString(raw) {
			flushHunk()
			current = nil
			inHeader = true
			inHunk = false
			continue
		}

		if inHeader {
			if raw == devNullPlus {
				// Deleted file: nothing addressable on the new side.
				current = nil
				continue
			}
			if m := plusHeaderRe.FindStringSubmatch(raw); m != nil {
				path := decodeGitPath(m[1])
				f, ok := ix.files[path]
				if !ok {
					f = &FileDiff{Path: path, AddedLines: make(map[int]string)}
					ix.files[path] = f
					ix.paths = append(ix.paths, path)
				}
				current = f
				continue
			}
			if strings.HasPrefix(raw, minusHeader) {
				continue
			}
			if binaryRe.MatchString(raw) {
				// Binary sections carry no hunks; drop the file entirely.
				if current != nil {
					ix.remove(current.Path)
				}
				current = nil
				inHeader = false
				continue
			}
		}

		if m := hunkHeaderRe.FindStringSubmatch(raw); m != nil {
			flushHunk()
			inHeader = false
			inHunk = true
			cursor, _ = strconv.Atoi(m[3])
			hunkStart = cursor
			hunkVisible = 0
			hunkOpen = current != nil
			continue
		}

		if !inHunk || current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(raw, "+"):
			current.AddedLines[cursor] = raw[1:]
			cursor++
			hunkVisible++
		case strings.HasPrefix(raw, "-"):
			// Deletions exist only on the old side; the cursor stays put.
		case strings.HasPrefix(raw, " "), raw == "":
			cursor++
			hunkVisible++
		case strings.HasPrefix(raw, `\`):
			// "\ No newline at end of file"
		default:
			flushHunk()
			inHunk = false
		}
	}

	flushHunk()
	return ix
}

func (ix *Index) remove(path string) {
	delete(ix.files, path)
	for i, p := range ix.paths {
		if p == path {
			ix.paths = append(ix.paths[:i], ix.paths[i+1:]...)
			break
		}
	}
}

var octalEscapeRe = regexp.MustCompile(`^\\([0-3][0-7]{2})`)

// decodeGitPath decodes git quote-escaping in a diff header path. Git quotes
// paths containing non-ASCII bytes using octal escapes; consecutive escapes
// form one UTF-8 byte run and must be decoded together. Byte runs that are
// not valid UTF-8 decode to replacement runes.
func decodeGitPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}

	const backslashMark = "\x00BACKSLASH\x00"
	path = strings.ReplaceAll(path, `\\`, backslashMark)
	path = strings.ReplaceAll(path, `\"`, `"`)
	path = strings.ReplaceAll(path, `\t`, "\t")
	path = strings.ReplaceAll(path, `\n`, "\n")

	var b strings.Builder
	var pending []byte
	for i := 0; i < len(path); {
		if m := octalEscapeRe.FindStringSubmatch(path[i:]); m != nil {
			n, _ := strconv.ParseUint(m[1], 8, 8)
			pending = append(pending, byte(n))
			i += len(m[0])
			continue
		}
		if len(pending) > 0 {
			b.WriteString(strings.ToValidUTF8(string(pending), "�"))
			pending = pending[:0]
		}
		b.WriteByte(path[i])
		i++
	}
	if len(pending) > 0 {
		b.WriteString(strings.ToValidUTF8(string(pending), "�"))
	}

	return strings.ReplaceAll(b.String(), backslashMark, `\`)
}
