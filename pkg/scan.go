package fileintegrity

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// ScannedPath represents a regular file found during a tree walk
type ScannedPath struct {
	AbsPath string
	RelPath string // root-relative, forward slashes
	Info    os.FileInfo
}

// Walker enumerates the regular files below Root in ascending order of
// their full path.
type Walker struct {
	Root        string
	SymlinkMode string
}

// NewWalker creates a walker. An empty symlink mode means SymlinkModeNone.
func NewWalker(root, symlinkMode string) *Walker {
	if symlinkMode == "" {
		symlinkMode = SymlinkModeNone
	}
	return &Walker{Root: filepath.Clean(root), SymlinkMode: symlinkMode}
}

// Files returns a lazy sequence of the regular files under the root. Each
// range over the sequence walks the tree again from the start. Entries that
// disappear or become unreadable during the walk are left out; only a
// failure on the root itself is yielded as an error.
func (w *Walker) Files() iter.Seq2[*ScannedPath, error] {
	return func(yield func(*ScannedPath, error) bool) {
		defer VerboseEnter()()

		rootInfo, err := os.Stat(w.Root)
		if err != nil {
			yield(nil, fmt.Errorf("%w: cannot access root %s: %w", ErrFilesystem, w.Root, err))
			return
		}
		if !rootInfo.IsDir() {
			yield(nil, fmt.Errorf("%w: %s", ErrNotDirectory, w.Root))
			return
		}

		rootEntries, err := os.ReadDir(w.Root)
		if err != nil {
			yield(nil, fmt.Errorf("%w: cannot read root %s: %w", ErrFilesystem, w.Root, err))
			return
		}

		// For every expanded directory, the resolved paths of it and its
		// ancestors. Only kept when symlinks are followed, since a tree
		// without them cannot loop.
		chains := make(map[string][]string)
		if w.followsSymlinks() {
			realRoot, err := filepath.EvalSymlinks(w.Root)
			if err != nil {
				realRoot = w.Root
			}
			chains[w.Root] = []string{realRoot}
		}

		// Priority queue of pending paths, kept sorted. A directory's
		// children always sort after the directory itself, so popping the
		// smallest path yields files in global lexicographic order.
		pathQueue := childPaths(w.Root, rootEntries)

		for len(pathQueue) > 0 {
			currentPath := pathQueue[0]
			pathQueue = pathQueue[1:]

			info, err := os.Lstat(currentPath)
			if err != nil {
				if IsDebugEnabled("scan") {
					VerboseLog(3, "scan: skipping vanished entry %s: %v", currentPath, err)
				}
				continue
			}

			if info.Mode()&os.ModeSymlink != 0 {
				targetInfo, ok := w.resolveSymlink(currentPath)
				if !ok {
					continue
				}
				info = targetInfo
			}

			switch {
			case info.IsDir():
				if w.followsSymlinks() {
					chain, ok := directoryChain(chains, currentPath)
					if !ok {
						if IsDebugEnabled("scan") {
							VerboseLog(3, "scan: not following symlink cycle at %s", currentPath)
						}
						continue
					}
					chains[currentPath] = chain
				}

				entries, err := os.ReadDir(currentPath)
				if err != nil {
					if IsDebugEnabled("scan") {
						VerboseLog(3, "scan: skipping unreadable directory %s: %v", currentPath, err)
					}
					continue
				}
				pathQueue = insertSorted(pathQueue, childPaths(currentPath, entries))

			case info.Mode().IsRegular():
				relPath, err := relativePath(w.Root, currentPath)
				if err != nil {
					continue
				}
				if IsDebugEnabled("scan") {
					VerboseLog(3, "scan: found file %s", relPath)
				}
				if !yield(&ScannedPath{AbsPath: currentPath, RelPath: relPath, Info: info}, nil) {
					return
				}

			default:
				// Sockets, devices, fifos
				if IsDebugEnabled("scan") {
					VerboseLog(3, "scan: skipping non-regular file %s (%s)", currentPath, info.Mode().Type())
				}
			}
		}
	}
}

// followsSymlinks reports whether the walker ever traverses a symlink
func (w *Walker) followsSymlinks() bool {
	return w.SymlinkMode == SymlinkModeContained || w.SymlinkMode == SymlinkModeAll
}

// directoryChain returns the resolved ancestor chain for dirPath, or false
// when dirPath resolves to one of its own ancestors.
func directoryChain(chains map[string][]string, dirPath string) ([]string, bool) {
	realPath, err := filepath.EvalSymlinks(dirPath)
	if err != nil {
		return nil, false
	}
	parentChain := chains[filepath.Dir(dirPath)]
	if slices.Contains(parentChain, realPath) {
		return nil, false
	}
	return append(slices.Clip(parentChain), realPath), true
}

// resolveSymlink applies the symlink mode and returns the target's info when
// the link should be followed.
func (w *Walker) resolveSymlink(linkPath string) (os.FileInfo, bool) {
	switch w.SymlinkMode {
	case SymlinkModeAll:
	case SymlinkModeContained:
		target, err := filepath.EvalSymlinks(linkPath)
		if err != nil {
			return nil, false
		}
		root, err := filepath.EvalSymlinks(w.Root)
		if err != nil || !isPathContained(target, root) {
			return nil, false
		}
	default:
		return nil, false
	}

	targetInfo, err := os.Stat(linkPath)
	if err != nil {
		return nil, false // broken link
	}
	return targetInfo, true
}

// childPaths joins directory entries onto dir in name order
func childPaths(dir string, entries []os.DirEntry) []string {
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths
}

// insertSorted merges two sorted path slices
func insertSorted(queue, newPaths []string) []string {
	if len(newPaths) == 0 {
		return queue
	}
	merged := make([]string, 0, len(queue)+len(newPaths))
	i, j := 0, 0
	for i < len(queue) && j < len(newPaths) {
		if queue[i] <= newPaths[j] {
			merged = append(merged, queue[i])
			i++
		} else {
			merged = append(merged, newPaths[j])
			j++
		}
	}
	merged = append(merged, queue[i:]...)
	merged = append(merged, newPaths[j:]...)
	return merged
}

// relativePath returns target relative to root using forward slashes
func relativePath(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// isPathContained checks if targetPath is root or lies below it
func isPathContained(targetPath, root string) bool {
	targetPath = filepath.Clean(targetPath)
	root = filepath.Clean(root)
	if targetPath == root {
		return true
	}
	return strings.HasPrefix(targetPath, root+string(filepath.Separator))
}
