package fileintegrity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/google/vectorio"
	"golang.org/x/sys/unix"
)

// FileRecord is the fingerprint and size of one file. The JSON key stays
// "sha256" whatever the algorithm so older manifests keep loading.
type FileRecord struct {
	Fingerprint string `json:"sha256"`
	Size        int64  `json:"size"`
}

// Manifest is a snapshot of a directory tree keyed by relative path
type Manifest struct {
	Version   int                   `json:"version"`
	Root      string                `json:"root"`
	Algorithm string                `json:"algorithm"`
	Created   string                `json:"created,omitempty"` // RFC 3339, informational
	Files     map[string]FileRecord `json:"files"`
}

// SortedPaths returns the manifest's relative paths in ascending order
func (m *Manifest) SortedPaths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Equal reports whether two manifests agree on algorithm and file records.
// Root, version and creation time are not compared.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Algorithm != other.Algorithm || len(m.Files) != len(other.Files) {
		return false
	}
	for p, rec := range m.Files {
		if otherRec, ok := other.Files[p]; !ok || otherRec != rec {
			return false
		}
	}
	return true
}

// HashAlgorithm returns the algorithm configuration named by the manifest
func (m *Manifest) HashAlgorithm() (*HashAlgorithm, error) {
	name := m.Algorithm
	if name == "" {
		name = DefaultAlgorithm
	}
	return GetHashAlgorithm(name)
}

// SaveManifest writes the manifest as indented JSON. The file is written to
// a temporary sibling and renamed into place so readers never see a partial
// manifest.
func SaveManifest(manifestPath string, m *Manifest) error {
	defer VerboseEnter()()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	dir := filepath.Dir(manifestPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(manifestPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp manifest: %w", ErrFilesystem, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := writevAll(tmp, [][]byte{data, []byte("\n")}); err != nil {
		return fmt.Errorf("%w: failed to write manifest: %w", ErrFilesystem, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("%w: failed to set manifest mode: %w", ErrFilesystem, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync manifest: %w", ErrFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close manifest: %w", ErrFilesystem, err)
	}
	if err := os.Rename(tmpName, manifestPath); err != nil {
		return fmt.Errorf("%w: failed to rename manifest into place: %w", ErrFilesystem, err)
	}
	committed = true

	if err := syncDir(dir); err != nil {
		VerboseLog(1, "Warning: failed to sync directory %s: %v", dir, err)
	}

	VerboseLog(2, "Saved manifest %s (%d files, %d bytes)", manifestPath, len(m.Files), len(data)+1)
	return nil
}

// writevAll writes all buffers with writev, resuming after short writes
func writevAll(file *os.File, buffers [][]byte) error {
	pending := make([][]byte, 0, len(buffers))
	for _, b := range buffers {
		if len(b) > 0 {
			pending = append(pending, b)
		}
	}

	for len(pending) > 0 {
		iovecs := make([]syscall.Iovec, len(pending))
		for i, b := range pending {
			iovecs[i].Base = &b[0]
			iovecs[i].SetLen(len(b))
		}

		nw, err := vectorio.WritevRaw(uintptr(file.Fd()), iovecs)
		if err != nil {
			return err
		}
		if nw <= 0 {
			return fmt.Errorf("writev made no progress")
		}

		for nw > 0 && len(pending) > 0 {
			if nw >= len(pending[0]) {
				nw -= len(pending[0])
				pending = pending[1:]
			} else {
				pending[0] = pending[0][nw:]
				nw = 0
			}
		}
	}
	return nil
}

// syncDir flushes a directory entry so a rename survives a crash
func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}

// LoadManifest reads and validates a manifest. A missing file yields
// ErrManifestNotFound; anything malformed yields ErrManifestParse, never an
// empty manifest.
func LoadManifest(manifestPath string) (*Manifest, error) {
	defer VerboseEnter()()

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, manifestPath)
		}
		return nil, fmt.Errorf("%w: failed to read manifest %s: %w", ErrFilesystem, manifestPath, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrManifestParse, manifestPath, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrManifestParse, manifestPath, err)
	}

	VerboseLog(2, "Loaded manifest %s (version %d, %s, %d files)", manifestPath, m.Version, m.Algorithm, len(m.Files))
	return &m, nil
}

// validate checks a decoded manifest and normalises fingerprints to lowercase
func (m *Manifest) validate() error {
	if m.Version < 0 || m.Version > CurrentManifestVersion {
		return fmt.Errorf("unsupported manifest version %d (supported: 0-%d)", m.Version, CurrentManifestVersion)
	}
	if m.Files == nil {
		return fmt.Errorf("missing files mapping")
	}
	if m.Algorithm == "" {
		m.Algorithm = DefaultAlgorithm
	}

	algorithm, err := GetHashAlgorithm(m.Algorithm)
	if err != nil {
		return err
	}

	for relPath, rec := range m.Files {
		if err := validateRelativePath(relPath); err != nil {
			return err
		}
		if !isValidFingerprint(rec.Fingerprint, algorithm) {
			return fmt.Errorf("invalid %s fingerprint for %q", algorithm.Name, relPath)
		}
		if rec.Size < 0 {
			return fmt.Errorf("negative size for %q", relPath)
		}
		rec.Fingerprint = strings.ToLower(rec.Fingerprint)
		m.Files[relPath] = rec
	}
	return nil
}

// validateRelativePath rejects keys that cannot have come from a tree walk
func validateRelativePath(relPath string) error {
	if relPath == "" || strings.HasPrefix(relPath, "/") {
		return fmt.Errorf("invalid relative path %q", relPath)
	}
	for _, segment := range strings.Split(relPath, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("invalid relative path %q", relPath)
		}
	}
	return nil
}
