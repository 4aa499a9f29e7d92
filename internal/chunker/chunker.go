package chunker

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mpetrun/semcode/pkg/types"
)

const (
	// DefaultMaxChunkSize bounds chunk content in characters.
	DefaultMaxChunkSize = 2000

	// DefaultOverlapLines is the number of trailing lines repeated at the
	// start of the next chunk when a unit is split by line ranges.
	DefaultOverlapLines = 5
)

// Chunker splits a file's content into an ordered sequence of bounded
// chunks aligned to syntactic boundaries when a tree-sitter grammar is
// available, falling back to fixed line windows otherwise.
//
// Invariant: the union of chunk line ranges, overlaps removed, covers every
// line of the file exactly once, and no chunk exceeds MaxChunkSize except
// when a single line alone is larger than the bound.
type Chunker struct {
	MaxChunkSize int
	OverlapLines int
}

// New creates a Chunker. Non-positive arguments select the defaults.
func New(maxChunkSize, overlapLines int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlapLines < 0 {
		overlapLines = DefaultOverlapLines
	}
	return &Chunker{MaxChunkSize: maxChunkSize, OverlapLines: overlapLines}
}

// span is an inclusive 1-based line range.
type span struct {
	start, end int
}

// ChunkFile splits content into chunks for the file at relPath. Zero-length
// content yields zero chunks. Parse failures are non-fatal and select the
// line-window fallback.
func (c *Chunker) ChunkFile(relPath string, content []byte) []types.Chunk {
	if len(content) == 0 {
		return nil
	}

	lines := strings.Split(string(content), "\n")
	// A trailing newline produces a phantom empty line; drop it so chunk
	// ranges address real lines only.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	language := LanguageForPath(relPath)
	segments := c.syntacticSegments(language, content, len(lines))
	if segments == nil {
		segments = []span{{start: 1, end: len(lines)}}
	}

	packed := c.pack(lines, segments)

	chunks := make([]types.Chunk, 0, len(packed))
	for _, sp := range packed {
		text := strings.Join(lines[sp.start-1:sp.end], "\n")
		chunks = append(chunks, types.Chunk{
			Content:       text,
			RelativePath:  relPath,
			StartLine:     sp.start,
			EndLine:       sp.end,
			Language:      language,
			SequenceIndex: len(chunks),
		})
	}
	return chunks
}

// syntacticSegments partitions the file's lines at top-level syntactic
// boundaries. Returns nil when no parser is available or parsing produced
// nothing usable.
func (c *Chunker) syntacticSegments(language string, content []byte, lineCount int) []span {
	lang := sitterLanguage(language)
	if lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree := parser.Parse(nil, content)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.NamedChildCount() == 0 {
		return nil
	}

	// Each top-level unit closes a segment at its last line. Gaps between
	// units (comments, blank lines) attach to the following segment so the
	// partition covers every line.
	var segments []span
	next := 1
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		end := int(node.EndPoint().Row) + 1
		if end > lineCount {
			end = lineCount
		}
		if end < next {
			continue
		}
		segments = append(segments, span{start: next, end: end})
		next = end + 1
	}
	if next <= lineCount {
		segments = append(segments, span{start: next, end: lineCount})
	}
	if len(segments) == 0 {
		return nil
	}
	return segments
}

// pack greedily merges consecutive segments into chunks bounded by
// MaxChunkSize, splitting any segment that alone exceeds the bound.
func (c *Chunker) pack(lines []string, segments []span) []span {
	var out []span
	var open *span
	openSize := 0

	flush := func() {
		if open != nil {
			out = append(out, *open)
			open = nil
			openSize = 0
		}
	}

	for _, seg := range segments {
		size := c.spanSize(lines, seg)

		if size > c.MaxChunkSize {
			flush()
			out = append(out, c.splitWindow(lines, seg)...)
			continue
		}

		if open != nil && openSize+size > c.MaxChunkSize {
			flush()
		}
		if open == nil {
			s := seg
			open = &s
			openSize = size
		} else {
			open.end = seg.end
			openSize += size
		}
	}
	flush()
	return out
}

// splitWindow splits one oversized span into line windows with OverlapLines
// trailing lines repeated at the start of each subsequent window.
func (c *Chunker) splitWindow(lines []string, seg span) []span {
	var out []span
	start := seg.start
	for start <= seg.end {
		size := 0
		end := start
		for end <= seg.end {
			lineSize := len(lines[end-1]) + 1
			if size > 0 && size+lineSize > c.MaxChunkSize {
				break
			}
			size += lineSize
			end++
		}
		last := end - 1
		out = append(out, span{start: start, end: last})
		if last >= seg.end {
			break
		}
		next := last + 1 - c.OverlapLines
		if next <= start {
			next = last + 1
		}
		start = next
	}
	return out
}

func (c *Chunker) spanSize(lines []string, sp span) int {
	size := 0
	for i := sp.start; i <= sp.end; i++ {
		size += len(lines[i-1]) + 1
	}
	return size
}
