package types

import "errors"

// Cross-cutting error taxonomy. Fatal configuration errors and
// ErrCollectionLimit abort a run immediately; transient errors are retried
// with backoff; per-file errors are counted and skipped.
var (
	// ErrNotFound indicates a missing collection, document, or snapshot.
	ErrNotFound = errors.New("not found")

	// ErrCollectionLimit is raised when the store's collection capacity is
	// reached. Never retried.
	ErrCollectionLimit = errors.New("collection limit exceeded")

	// ErrIndexInProgress is returned when a run is rejected because another
	// run already holds the root's lock.
	ErrIndexInProgress = errors.New("indexing already in progress for this root")

	// ErrAliasNotFound indicates the requested alias has no target.
	ErrAliasNotFound = errors.New("alias not found")
)

// TransientError marks a failure as retryable (network, timeout, rate
// limit). Providers and stores wrap such failures so the retry layer can
// distinguish them from permanent configuration errors.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// MarkTransient wraps err as retryable. Returns nil for a nil err.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
