package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleDiff = `diff --git a/Source/Foo.cpp b/Source/Foo.cpp
index 1111111..2222222 100644
--- a/Source/Foo.cpp
+++ b/Source/Foo.cpp
@@ -8,6 +8,9 @@ void AFooActor::BeginPlay()
 {
 	Super::BeginPlay();

+	UE_LOG(LogTemp, Warning, TEXT("started"));
+	Count = 0;
+	bReady = true;
 }

 void AFooActor::Tick(float DeltaTime)
`

func TestParse_AddedLinesAndCursor(t *testing.T) {
	ix := NewParser().Parse(simpleDiff)
	require.Equal(t, 1, ix.Len())

	f, ok := ix.File("Source/Foo.cpp")
	require.True(t, ok)

	// Hunk starts at new line 8 with three context lines before the adds.
	assert.Equal(t, []int{11, 12, 13}, f.AddedLineNumbers())
	assert.Equal(t, "\tCount = 0;", f.AddedLines[12])
	assert.True(t, f.Added(11))
	assert.False(t, f.Added(8))
}

func TestParse_HunkSpansContextAndAdds(t *testing.T) {
	ix := NewParser().Parse(simpleDiff)
	f, _ := ix.File("Source/Foo.cpp")

	// 9 visible lines (6 context + 3 added) from line 8.
	require.Len(t, f.Hunks, 1)
	assert.Equal(t, HunkRange{Start: 8, End: 16}, f.Hunks[0])
	assert.True(t, f.ContainsRange(8, 16))
	assert.False(t, f.ContainsRange(8, 17))
}

func TestParse_DeletionsDoNotAdvanceCursor(t *testing.T) {
	diffText := `diff --git a/a.txt b/a.txt
--- a/a.txt
+++ b/a.txt
@@ -1,4 +1,3 @@
 one
-two
-three
+TWO
 four
`
	ix := NewParser().Parse(diffText)
	f, ok := ix.File("a.txt")
	require.True(t, ok)

	assert.Equal(t, map[int]string{2: "TWO"}, f.AddedLines)
	require.Len(t, f.Hunks, 1)
	assert.Equal(t, HunkRange{Start: 1, End: 3}, f.Hunks[0])
}

func TestParse_MultipleHunksAndFiles(t *testing.T) {
	diffText := `diff --git a/x.go b/x.go
--- a/x.go
+++ b/x.go
@@ -1,2 +1,3 @@
 package x
+// added

@@ -40,3 +41,4 @@ func f() {
 	a()
+	b()
 	c()
 }
diff --git a/y.go b/y.go
--- a/y.go
+++ b/y.go
@@ -10 +10 @@
-old
+new
`
	ix := NewParser().Parse(diffText)
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, []string{"x.go", "y.go"}, ix.Paths())

	x, _ := ix.File("x.go")
	want := []HunkRange{{Start: 1, End: 3}, {Start: 41, End: 44}}
	if diff := cmp.Diff(want, x.Hunks); diff != "" {
		t.Errorf("hunks mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{2, 42}, x.AddedLineNumbers())

	y, _ := ix.File("y.go")
	assert.Equal(t, map[int]string{10: "new"}, y.AddedLines)
}

func TestParse_NewFile(t *testing.T) {
	diffText := `diff --git a/new.txt b/new.txt
new file mode 100644
--- /dev/null
+++ b/new.txt
@@ -0,0 +1,2 @@
+hello
+world
`
	ix := NewParser().Parse(diffText)
	f, ok := ix.File("new.txt")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, f.AddedLineNumbers())
	assert.Equal(t, []HunkRange{{Start: 1, End: 2}}, f.Hunks)
}

func TestParse_DeletedFileExcluded(t *testing.T) {
	diffText := `diff --git a/gone.txt b/gone.txt
deleted file mode 100644
--- a/gone.txt
+++ /dev/null
@@ -1,2 +0,0 @@
-hello
-world
`
	ix := NewParser().Parse(diffText)
	assert.Equal(t, 0, ix.Len())
}

func TestParse_RenameWithoutContentChange(t *testing.T) {
	diffText := `diff --git a/old_name.cpp b/new_name.cpp
similarity index 100%
rename from old_name.cpp
rename to new_name.cpp
`
	ix := NewParser().Parse(diffText)
	assert.Equal(t, 0, ix.Len())
}

func TestParse_BinaryFileExcluded(t *testing.T) {
	diffText := `diff --git a/img.png b/img.png
index 1111111..2222222 100644
Binary files a/img.png and b/img.png differ
diff --git a/a.txt b/a.txt
--- a/a.txt
+++ b/a.txt
@@ -1 +1,2 @@
 one
+two
`
	ix := NewParser().Parse(diffText)
	require.Equal(t, 1, ix.Len())
	_, ok := ix.File("img.png")
	assert.False(t, ok)
	_, ok = ix.File("a.txt")
	assert.True(t, ok)
}

func TestParse_NoNewlineMarker(t *testing.T) {
	diffText := `diff --git a/a.txt b/a.txt
--- a/a.txt
+++ b/a.txt
@@ -1 +1 @@
-old
+new
\ No newline at end of file
`
	ix := NewParser().Parse(diffText)
	f, ok := ix.File("a.txt")
	require.True(t, ok)
	assert.Equal(t, []HunkRange{{Start: 1, End: 1}}, f.Hunks)
}

func TestParse_QuotedOctalPath(t *testing.T) {
	diffText := "diff --git \"a/Docs/r\\303\\251sum\\303\\251.md\" \"b/Docs/r\\303\\251sum\\303\\251.md\"\n" +
		"--- \"a/Docs/r\\303\\251sum\\303\\251.md\"\n" +
		"+++ \"b/Docs/r\\303\\251sum\\303\\251.md\"\n" +
		"@@ -1 +1,2 @@\n" +
		" line\n" +
		"+more\n"
	ix := NewParser().Parse(diffText)
	f, ok := ix.File("Docs/résumé.md")
	require.True(t, ok)
	assert.Equal(t, map[int]string{2: "more"}, f.AddedLines)
}

func TestParse_EmptyAndMalformedInput(t *testing.T) {
	assert.Equal(t, 0, NewParser().Parse("").Len())
	assert.Equal(t, 0, NewParser().Parse("not a diff at all\njust text\n").Len())
	assert.Equal(t, 0, NewParser().Parse("@@ -1,2 +1,2 @@\n context without header\n").Len())
}

func TestDecodeGitPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Source/Foo.cpp", "Source/Foo.cpp"},
		{"octal utf8", `Docs/r\303\251sum\303\251.md`, "Docs/résumé.md"},
		{"escaped quote", `a\"b.txt`, `a"b.txt`},
		{"escaped backslash", `a\\b.txt`, `a\b.txt`},
		{"tab", `a\tb.txt`, "a\tb.txt"},
		{"invalid utf8 run", `a\303b.txt`, "a�b.txt"},
		{"invalid trailing run", `a\377`, "a�"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeGitPath(tt.in))
		})
	}
}
