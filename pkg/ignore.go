package fileintegrity

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// IgnoreSet holds relative paths excluded from manifests and verification.
// Entries are compared exactly, after case folding and slash normalisation;
// there is no glob or pattern support.
type IgnoreSet struct {
	entries map[string]struct{}
}

// NewIgnoreSet creates an ignore set from relative paths
func NewIgnoreSet(paths ...string) *IgnoreSet {
	is := &IgnoreSet{entries: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		is.Add(p)
	}
	return is
}

// normaliseIgnoreKey folds case and cleans a user-supplied entry to
// forward-slash form. Walked paths are only case folded, see ShouldIgnore.
func normaliseIgnoreKey(relPath string) string {
	p := filepath.ToSlash(strings.TrimSpace(relPath))
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(path.Clean(p), "./")
	return strings.ToLower(p)
}

// Add adds a relative path to the set. Empty paths are ignored.
func (is *IgnoreSet) Add(relPath string) {
	if key := normaliseIgnoreKey(relPath); key != "" && key != "." {
		is.entries[key] = struct{}{}
	}
}

// WithManifest adds the base name of the manifest file so a manifest stored
// inside the scanned tree never lists or reports itself. It returns the set
// for chaining.
func (is *IgnoreSet) WithManifest(manifestPath string) *IgnoreSet {
	is.Add(filepath.Base(manifestPath))
	return is
}

// ShouldIgnore reports whether relPath is in the set. relPath is a walked
// or manifest path and is matched exactly apart from case.
func (is *IgnoreSet) ShouldIgnore(relPath string) bool {
	if is == nil || len(is.entries) == 0 {
		return false
	}
	_, ok := is.entries[strings.ToLower(relPath)]
	return ok
}

// Clone returns an independent copy of the set. A nil set clones to an
// empty one.
func (is *IgnoreSet) Clone() *IgnoreSet {
	clone := &IgnoreSet{entries: make(map[string]struct{}, is.Len())}
	if is != nil {
		for e := range is.entries {
			clone.entries[e] = struct{}{}
		}
	}
	return clone
}

// Len returns the number of entries
func (is *IgnoreSet) Len() int {
	if is == nil {
		return 0
	}
	return len(is.entries)
}

// Entries returns the case-folded entries in sorted order
func (is *IgnoreSet) Entries() []string {
	if is == nil {
		return nil
	}
	out := make([]string, 0, len(is.entries))
	for e := range is.entries {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// LoadIgnoreFile adds every relative path listed in an ignore file. Blank
// lines and lines starting with # are skipped.
func (is *IgnoreSet) LoadIgnoreFile(ignorePath string) error {
	file, err := os.Open(ignorePath)
	if err != nil {
		return fmt.Errorf("%w: failed to open ignore file: %w", ErrFilesystem, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		is.Add(line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: error reading ignore file: %w", ErrFilesystem, err)
	}
	return nil
}
