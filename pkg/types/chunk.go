package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Chunk is a bounded, line-addressable slice of a file's content destined
// for embedding. Chunks are produced in file order; SequenceIndex is the
// zero-based position of the chunk within its file and is reproducible for
// unchanged content.
type Chunk struct {
	Content       string
	RelativePath  string
	StartLine     int // 1-based, inclusive
	EndLine       int // 1-based, inclusive
	Language      string
	SequenceIndex int
}

// ContentHash returns the hex-encoded SHA-256 digest of the chunk content.
func (c *Chunk) ContentHash() string {
	h := sha256.Sum256([]byte(c.Content))
	return hex.EncodeToString(h[:])
}

// Validate checks structural invariants of the chunk.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.RelativePath == "" {
		return errors.New("chunk relative path is required")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if c.SequenceIndex < 0 {
		return errors.New("sequence index cannot be negative")
	}
	return nil
}
