package fileintegrity

import "strings"

// Manifest format constants
const (
	// CurrentManifestVersion is written into every new manifest. Manifests
	// without a version field are read as version 0 (the original format).
	CurrentManifestVersion = 1
	DefaultAlgorithm       = "SHA-256"
)

// Skiplist contexts used while comparing snapshots
const (
	BaselineContext = "baseline"
	CurrentContext  = "current"
)

// Hash type constants
const (
	HashTypeSHA1   uint16 = 1 // SHA-1 (20 bytes)
	HashTypeSHA256 uint16 = 2 // SHA-256 (32 bytes)
	HashTypeSHA512 uint16 = 3 // SHA-512 (64 bytes)
	HashTypeBLAKE3 uint16 = 4 // BLAKE3 (32 bytes)
)

// Hash size constants
const (
	HashSizeSHA1   = 20
	HashSizeSHA256 = 32
	HashSizeSHA512 = 64
	HashSizeBLAKE3 = 32
)

// Symlink handling modes
const (
	SymlinkModeNone      = "none"
	SymlinkModeContained = "contained"
	SymlinkModeAll       = "all"
)

// Output formats
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Performance defaults
const (
	DefaultHashWorkers = 4
	DefaultHashBuffer  = "1M"
	DefaultBufferSize  = 1024 * 1024
)

// HashTypeName returns the persisted name for a hash type
func HashTypeName(hashType uint16) string {
	switch hashType {
	case HashTypeSHA1:
		return "SHA-1"
	case HashTypeSHA256:
		return "SHA-256"
	case HashTypeSHA512:
		return "SHA-512"
	case HashTypeBLAKE3:
		return "BLAKE3"
	default:
		return "unknown"
	}
}

// HashTypeFromName returns the hash type constant from a name. Matching is
// case-insensitive and ignores dashes, so "sha256" and "SHA-256" are equal.
func HashTypeFromName(name string) (uint16, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "") {
	case "sha1":
		return HashTypeSHA1, true
	case "sha256":
		return HashTypeSHA256, true
	case "sha512":
		return HashTypeSHA512, true
	case "blake3":
		return HashTypeBLAKE3, true
	default:
		return 0, false
	}
}
