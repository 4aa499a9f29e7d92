package types

import "time"

// IndexStats accumulates counters over one indexing run. Returned to the
// caller even when the run aborts, so partial progress is observable.
type IndexStats struct {
	FilesProcessed int
	ChunksCreated  int
	ChunksEmbedded int
	ChunksFailed   int
	FilesDeleted   int
	Duration       time.Duration
	Errors         []string
}
