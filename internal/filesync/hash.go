package filesync

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"
)

// HashFile computes the SHA-256 digest of a file's bytes along with its
// size and modification time. Deterministic for a given byte sequence; the
// only failure mode is an I/O error, which propagates to the caller.
func HashFile(path string) (digest string, size int64, modTime time.Time, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, time.Time{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", 0, time.Time{}, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", 0, time.Time{}, err
	}

	return hex.EncodeToString(h.Sum(nil)), info.Size(), info.ModTime(), nil
}

// HashBytes computes the hex-encoded SHA-256 digest of a byte slice.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
