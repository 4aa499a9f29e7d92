// Package chunker divides source files into bounded chunks for embedding
// and search.
//
// Chunks align to syntactic boundaries when a tree-sitter grammar exists
// for the file's language (Go, Python, JavaScript, TypeScript, Java, C#):
// top-level declarations become segments, and segments are greedily packed
// into chunks up to MaxChunkSize characters. Files in unknown languages,
// and files that fail to parse, fall back to fixed line windows.
//
// # Basic Usage
//
//	c := chunker.New(2000, 5)
//	chunks := c.ChunkFile("internal/server.go", content)
//
//	for _, chunk := range chunks {
//	    fmt.Printf("chunk %d: lines %d-%d\n",
//	        chunk.SequenceIndex, chunk.StartLine, chunk.EndLine)
//	}
//
// # Coverage Invariant
//
// The union of chunk line ranges, overlaps removed, covers every line of
// the file exactly once. Gaps between syntactic units (comments, blank
// lines, directives) attach to the following unit so nothing is dropped.
//
// # Oversized Units
//
// A unit larger than MaxChunkSize is split into line windows that repeat
// the previous window's trailing OverlapLines lines, preserving local
// context across the split. A single line larger than the bound becomes
// its own chunk; the size limit is best-effort in that one case.
package chunker
