package biz

import "errors"

// Error taxonomy of the storage engine. Pipelines decide locally whether an
// error aborts the operation or degrades it; nothing here is thrown across
// the service boundary.
var (
	// ErrNotFound indicates a missing File or FileInstance
	ErrNotFound = errors.New("storage: not found")

	// ErrNoBucketsConfigured indicates there is no enabled bucket to write to
	ErrNoBucketsConfigured = errors.New("storage: no enabled buckets configured")

	// ErrStorageBackend indicates a backend driver call failed
	ErrStorageBackend = errors.New("storage: backend error")

	// ErrValidation indicates bad attributes handed to the registry layer
	ErrValidation = errors.New("storage: validation error")

	// ErrEmptyFile indicates a zero-byte upload
	ErrEmptyFile = errors.New("storage: empty file")
)

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
