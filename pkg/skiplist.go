package fileintegrity

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// recordEntry is one manifest entry held in a recordIndex
type recordEntry struct {
	RelPath string
	Record  FileRecord
}

// recordIndex keeps manifest entries ordered by relative path, tagged with
// the snapshot they came from.
type recordIndex struct {
	skiplist *zcsl.ZeroCopySkiplist[recordEntry, string, string]
}

// newRecordIndex creates an empty index
func newRecordIndex(maxLevels int) *recordIndex {
	if maxLevels < 8 {
		maxLevels = 16
	}

	getKeyFromItem := func(entry *recordEntry) string {
		return entry.RelPath
	}

	getItemSize := func(entry *recordEntry) int {
		return len(entry.RelPath) + len(entry.Record.Fingerprint) + 8
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &recordIndex{
		skiplist: zcsl.MakeZeroCopySkiplist[recordEntry, string, string](
			maxLevels,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
	}
}

// indexManifest loads every non-ignored entry of m into a new index
func indexManifest(m *Manifest, context string, ignore *IgnoreSet) *recordIndex {
	idx := newRecordIndex(16)
	for relPath, record := range m.Files {
		if ignore.ShouldIgnore(relPath) {
			continue
		}
		idx.Insert(recordEntry{RelPath: relPath, Record: record}, context)
	}
	return idx
}

// Insert adds an entry with the given context
func (ri *recordIndex) Insert(entry recordEntry, context string) bool {
	return ri.skiplist.Insert(&entry, context)
}

// Length returns the number of entries
func (ri *recordIndex) Length() int {
	return ri.skiplist.Length()
}
