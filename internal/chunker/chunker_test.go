package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package sample

import "fmt"

func Alpha() {
	fmt.Println("alpha")
}

func Beta() {
	fmt.Println("beta")
}

type Gamma struct {
	Field int
}
`

// lineCoverage asserts that the chunks' line ranges, ordered by start,
// cover every line of the file exactly once apart from declared overlaps.
func lineCoverage(t *testing.T, chunks []chunkRange, totalLines, overlap int) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].start, "first chunk must start at line 1")
	assert.Equal(t, totalLines, chunks[len(chunks)-1].end, "last chunk must end at the last line")

	for i := 1; i < len(chunks); i++ {
		gap := chunks[i].start - chunks[i-1].end
		assert.LessOrEqual(t, gap, 1, "no gap allowed between chunks %d and %d", i-1, i)
		assert.GreaterOrEqual(t, gap, 1-overlap, "overlap above bound between chunks %d and %d", i-1, i)
	}
}

type chunkRange struct{ start, end int }

func TestChunkGoFileAtSyntacticBoundaries(t *testing.T) {
	c := New(80, 2)
	chunks := c.ChunkFile("sample.go", []byte(goSample))
	require.NotEmpty(t, chunks)

	totalLines := len(strings.Split(strings.TrimSuffix(goSample, "\n"), "\n"))
	ranges := make([]chunkRange, len(chunks))
	for i, ch := range chunks {
		ranges[i] = chunkRange{ch.StartLine, ch.EndLine}
		assert.Equal(t, i, ch.SequenceIndex)
		assert.Equal(t, "go", ch.Language)
		assert.Equal(t, "sample.go", ch.RelativePath)
	}
	lineCoverage(t, ranges, totalLines, c.OverlapLines)
}

func TestChunkContentMatchesLineRange(t *testing.T) {
	c := New(0, 0)
	chunks := c.ChunkFile("sample.go", []byte(goSample))
	require.NotEmpty(t, chunks)

	lines := strings.Split(strings.TrimSuffix(goSample, "\n"), "\n")
	for _, ch := range chunks {
		expected := strings.Join(lines[ch.StartLine-1:ch.EndLine], "\n")
		assert.Equal(t, expected, ch.Content)
	}
}

func TestEmptyFileYieldsNoChunks(t *testing.T) {
	c := New(0, 0)
	assert.Empty(t, c.ChunkFile("empty.go", nil))
	assert.Empty(t, c.ChunkFile("empty.go", []byte{}))
}

func TestUnknownLanguageFallsBackToLineWindows(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "line %d with some padding text\n", i)
	}

	c := New(500, 3)
	chunks := c.ChunkFile("notes.txt", []byte(sb.String()))
	require.Greater(t, len(chunks), 1, "long unknown-language file must split")

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), c.MaxChunkSize)
		assert.Equal(t, "", ch.Language)
	}

	ranges := make([]chunkRange, len(chunks))
	for i, ch := range chunks {
		ranges[i] = chunkRange{ch.StartLine, ch.EndLine}
	}
	lineCoverage(t, ranges, 200, c.OverlapLines)
}

func TestOversizedSingleLineStillProgresses(t *testing.T) {
	huge := strings.Repeat("x", 5000)
	content := "short\n" + huge + "\nshort again\n"

	c := New(100, 2)
	chunks := c.ChunkFile("big.txt", []byte(content))
	require.NotEmpty(t, chunks)

	// The oversized line gets its own chunk; the bound is exceeded only
	// because a single line cannot be split.
	found := false
	for _, ch := range chunks {
		if strings.Contains(ch.Content, huge) {
			found = true
			assert.Equal(t, ch.StartLine, ch.EndLine)
		}
	}
	assert.True(t, found, "oversized line must appear in exactly one chunk")
}

func TestChunkSizeBoundRespected(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "func F%d() { return }\n", i)
	}

	c := New(300, 0)
	chunks := c.ChunkFile("many.go", []byte(sb.String()))
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 300+1)
	}
}

func TestSequenceIndexesAreDense(t *testing.T) {
	c := New(200, 1)
	chunks := c.ChunkFile("sample.go", []byte(goSample))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.SequenceIndex)
	}
}

func TestLanguageForPath(t *testing.T) {
	cases := map[string]string{
		"a.go":      "go",
		"b.py":      "python",
		"c.js":      "javascript",
		"d.ts":      "typescript",
		"e.tsx":     "tsx",
		"f.java":    "java",
		"g.cs":      "csharp",
		"notes.txt": "",
	}
	for path, want := range cases {
		assert.Equal(t, want, LanguageForPath(path), path)
	}
}
