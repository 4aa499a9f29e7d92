package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/mpetrun/semcode/pkg/types"
)

// FormatVersion is the current on-disk snapshot schema version.
const FormatVersion = 1

// FileFingerprint summarizes one file's last indexed state.
type FileFingerprint struct {
	Path    string    `json:"path"`
	Hash    string    `json:"hash"` // hex SHA-256 of file bytes
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

// Snapshot is the durable record of "last successfully indexed state" for
// one root directory. It is fully rewritten after each successful sync
// cycle, never partially mutated.
type Snapshot struct {
	RootDir           string                     `json:"root_dir"`
	IgnorePatterns    []string                   `json:"ignore_patterns"`
	IncludeExtensions []string                   `json:"include_extensions"`
	FileHashes        map[string]FileFingerprint `json:"file_hashes"`
	FormatVersion     int                        `json:"format_version"`
}

// New creates an empty snapshot for a root.
func New(rootDir string, ignorePatterns, includeExtensions []string) *Snapshot {
	return &Snapshot{
		RootDir:           rootDir,
		IgnorePatterns:    ignorePatterns,
		IncludeExtensions: includeExtensions,
		FileHashes:        make(map[string]FileFingerprint),
		FormatVersion:     FormatVersion,
	}
}

// Store persists snapshots on disk, one file per indexed root. File names
// are derived from an xxh3 digest of the root path so roots cannot collide
// regardless of path characters.
type Store struct {
	dir string
}

// NewStore creates a snapshot store rooted at dir. An empty dir selects
// ~/.semcode/snapshots.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".semcode", "snapshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) pathFor(rootDir string) string {
	sum := xxh3.HashString(filepath.Clean(rootDir))
	return filepath.Join(s.dir, fmt.Sprintf("%016x.json", sum))
}

// Load reads the snapshot for rootDir. Returns types.ErrNotFound when no
// snapshot exists.
func (s *Store) Load(rootDir string) (*Snapshot, error) {
	data, err := os.ReadFile(s.pathFor(rootDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("snapshot for %s: %w", rootDir, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot format version %d (want %d)",
			snap.FormatVersion, FormatVersion)
	}
	if snap.FileHashes == nil {
		snap.FileHashes = make(map[string]FileFingerprint)
	}
	return &snap, nil
}

// Save writes the snapshot durably. The write goes to a temp file in the
// same directory followed by an atomic rename, so a crash mid-write can
// never be read back as a valid snapshot.
func (s *Store) Save(snap *Snapshot) error {
	snap.FormatVersion = FormatVersion

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.pathFor(snap.RootDir)); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot for rootDir. Deleting a missing snapshot is
// not an error.
func (s *Store) Delete(rootDir string) error {
	err := os.Remove(s.pathFor(rootDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Exists reports whether a snapshot is present for rootDir.
func (s *Store) Exists(rootDir string) bool {
	_, err := os.Stat(s.pathFor(rootDir))
	return err == nil
}
