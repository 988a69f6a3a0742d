package fileintegrity

import (
	"strings"
)

// FileStatus represents the classification of one path
type FileStatus int

const (
	StatusUnchanged FileStatus = iota
	StatusChanged
	StatusAdded
	StatusRemoved
)

// String returns the lowercase name of the status
func (s FileStatus) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusChanged:
		return "changed"
	case StatusAdded:
		return "added"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Report is the classification of a directory against its baseline. Each
// list is sorted; unchanged files are only counted.
type Report struct {
	Root      string   `json:"root" yaml:"root"`
	Algorithm string   `json:"algorithm" yaml:"algorithm"`
	Added     []string `json:"added" yaml:"added"`
	Removed   []string `json:"removed" yaml:"removed"`
	Changed   []string `json:"changed" yaml:"changed"`
	Unchanged int      `json:"unchanged" yaml:"unchanged"`
}

// IsClean returns true if no drift was found
func (r *Report) IsClean() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// TotalChanges returns the number of drifted paths
func (r *Report) TotalChanges() int {
	return len(r.Added) + len(r.Removed) + len(r.Changed)
}

// Verify rebuilds the snapshot of root with the baseline's algorithm and
// the same ignore set, then compares it against the baseline.
func (b *Builder) Verify(root string, baseline *Manifest, ignore *IgnoreSet) (*Report, error) {
	defer VerboseEnter()()

	algorithm, err := baseline.HashAlgorithm()
	if err != nil {
		return nil, err
	}

	absRoot, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	if baseline.Root != "" && baseline.Root != absRoot {
		VerboseLog(1, "Baseline was recorded for %s, verifying %s", baseline.Root, absRoot)
	}

	files, err := b.snapshot(absRoot, ignore, algorithm)
	if err != nil {
		return nil, err
	}

	current := &Manifest{
		Version:   CurrentManifestVersion,
		Root:      absRoot,
		Algorithm: algorithm.Name,
		Files:     files,
	}

	return CompareWithIgnore(baseline, current, ignore), nil
}

// Compare classifies every path of two manifests
func Compare(baseline, current *Manifest) *Report {
	return CompareWithIgnore(baseline, current, nil)
}

// CompareWithIgnore classifies every path of two manifests, leaving out
// ignored paths on both sides so ignored files are never reported.
func CompareWithIgnore(baseline, current *Manifest, ignore *IgnoreSet) *Report {
	defer VerboseEnter()()

	report := &Report{
		Root:      current.Root,
		Algorithm: current.Algorithm,
		Added:     make([]string, 0),
		Removed:   make([]string, 0),
		Changed:   make([]string, 0),
	}

	baselineIndex := indexManifest(baseline, BaselineContext, ignore)
	currentIndex := indexManifest(current, CurrentContext, ignore)
	VerboseLog(2, "Comparing %d baseline entries with %d current entries", baselineIndex.Length(), currentIndex.Length())

	compareIndexes(baselineIndex, currentIndex, func(status FileStatus, relPath string, baselineRecord, currentRecord *FileRecord) {
		if IsDebugEnabled("verify") {
			VerboseLog(3, "verify: %s -> %s", relPath, status)
		}
		switch status {
		case StatusAdded:
			report.Added = append(report.Added, relPath)
		case StatusRemoved:
			report.Removed = append(report.Removed, relPath)
		case StatusChanged:
			report.Changed = append(report.Changed, relPath)
		case StatusUnchanged:
			report.Unchanged++
		}
	})

	return report
}

// compareIndexes merge-walks two path-ordered indexes. Walking both in
// order gives the set differences and the intersection in one pass with
// every callback arriving in ascending path order.
func compareIndexes(baselineIndex, currentIndex *recordIndex,
	callback func(status FileStatus, relPath string, baselineRecord, currentRecord *FileRecord)) {

	baselineCurrent := baselineIndex.skiplist.First()
	diskCurrent := currentIndex.skiplist.First()

	for baselineCurrent != nil && diskCurrent != nil {
		baselineEntry := baselineCurrent.Item()
		diskEntry := diskCurrent.Item()

		cmp := strings.Compare(baselineEntry.RelPath, diskEntry.RelPath)
		switch {
		case cmp == 0:
			if fingerprintsDiffer(baselineEntry.Record, diskEntry.Record) {
				callback(StatusChanged, baselineEntry.RelPath, &baselineEntry.Record, &diskEntry.Record)
			} else {
				if baselineEntry.Record.Size != diskEntry.Record.Size {
					VerboseLog(2, "Size mismatch with equal fingerprint for %s (%d vs %d bytes)",
						baselineEntry.RelPath, baselineEntry.Record.Size, diskEntry.Record.Size)
				}
				callback(StatusUnchanged, baselineEntry.RelPath, &baselineEntry.Record, &diskEntry.Record)
			}
			baselineCurrent = baselineCurrent.Next()
			diskCurrent = diskCurrent.Next()
		case cmp < 0:
			traceOneSided(baselineEntry.RelPath, baselineCurrent.Context())
			callback(StatusRemoved, baselineEntry.RelPath, &baselineEntry.Record, nil)
			baselineCurrent = baselineCurrent.Next()
		default:
			traceOneSided(diskEntry.RelPath, diskCurrent.Context())
			callback(StatusAdded, diskEntry.RelPath, nil, &diskEntry.Record)
			diskCurrent = diskCurrent.Next()
		}
	}

	for ; baselineCurrent != nil; baselineCurrent = baselineCurrent.Next() {
		entry := baselineCurrent.Item()
		traceOneSided(entry.RelPath, baselineCurrent.Context())
		callback(StatusRemoved, entry.RelPath, &entry.Record, nil)
	}

	for ; diskCurrent != nil; diskCurrent = diskCurrent.Next() {
		entry := diskCurrent.Item()
		traceOneSided(entry.RelPath, diskCurrent.Context())
		callback(StatusAdded, entry.RelPath, nil, &entry.Record)
	}
}

// traceOneSided logs a path found in only one snapshot, named by the
// context it was indexed with.
func traceOneSided(relPath, context string) {
	if IsDebugEnabled("verify") {
		VerboseLog(3, "verify: %s only in %s snapshot", relPath, context)
	}
}

// fingerprintsDiffer compares fingerprints; size never decides a change
func fingerprintsDiffer(a, b FileRecord) bool {
	return !strings.EqualFold(a.Fingerprint, b.Fingerprint)
}
