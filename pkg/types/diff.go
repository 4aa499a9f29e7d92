package types

// FileDiff classifies every path seen in the current tree or the previous
// snapshot. Computed fresh each run, never persisted.
type FileDiff struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// HasChanges reports whether the diff requires any store writes.
func (d *FileDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Modified) > 0 || len(d.Deleted) > 0
}

// ChangedFiles returns added and modified paths, the set that must be
// re-chunked and re-embedded.
func (d *FileDiff) ChangedFiles() []string {
	out := make([]string, 0, len(d.Added)+len(d.Modified))
	out = append(out, d.Added...)
	out = append(out, d.Modified...)
	return out
}

// TotalPaths is the union size of before and after path sets.
func (d *FileDiff) TotalPaths() int {
	return len(d.Added) + len(d.Modified) + len(d.Deleted) + len(d.Unchanged)
}

// FileError records a per-file failure that did not abort the run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error { return e.Err }
