package fileintegrity

import "errors"

// Error kinds. Every error returned by this package wraps one of these so
// callers can classify failures with errors.Is.
var (
	// ErrFilesystem covers a missing root, unreadable files and files that
	// vanish while being hashed.
	ErrFilesystem = errors.New("filesystem error")

	// ErrNotDirectory is returned when the scan root exists but is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrManifestNotFound is returned when the baseline manifest does not exist.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrManifestParse is returned for malformed or inconsistent manifests.
	ErrManifestParse = errors.New("manifest parse error")

	// ErrInterrupted is returned when a shutdown signal stops hashing.
	ErrInterrupted = errors.New("operation interrupted by shutdown")

	// ErrUnsupportedAlgorithm is returned for hash algorithm names that are not registered.
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
)
