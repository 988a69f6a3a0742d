package fileintegrity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"
)

// Builder produces manifests and verification reports for directory trees
type Builder struct {
	algorithm    *HashAlgorithm
	bufferSize   int
	hashWorkers  int
	symlinkMode  string
	shutdownChan <-chan struct{}
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder) error

// WithAlgorithm selects the hash algorithm for new manifests by name
func WithAlgorithm(name string) BuilderOption {
	return func(b *Builder) error {
		algorithm, err := GetHashAlgorithm(name)
		if err != nil {
			return err
		}
		b.algorithm = algorithm
		return nil
	}
}

// WithBufferSize sets the per-file read chunk size in bytes
func WithBufferSize(size int) BuilderOption {
	return func(b *Builder) error {
		if size <= 0 {
			return fmt.Errorf("buffer size must be positive, got: %d", size)
		}
		b.bufferSize = size
		return nil
	}
}

// WithHashWorkers sets how many files are hashed concurrently
func WithHashWorkers(workers int) BuilderOption {
	return func(b *Builder) error {
		if err := ValidateHashWorkers(workers); err != nil {
			return err
		}
		b.hashWorkers = workers
		return nil
	}
}

// WithSymlinkMode sets the symlink policy of the tree walk
func WithSymlinkMode(mode string) BuilderOption {
	return func(b *Builder) error {
		if err := ValidateSymlinkMode(mode); err != nil {
			return err
		}
		b.symlinkMode = mode
		return nil
	}
}

// WithShutdown makes hashing stop with ErrInterrupted once ch is closed
func WithShutdown(ch <-chan struct{}) BuilderOption {
	return func(b *Builder) error {
		b.shutdownChan = ch
		return nil
	}
}

// NewBuilder creates a builder using SHA-256, a 1 MiB buffer, the default
// worker count and no symlink following unless options say otherwise.
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	algorithm, err := GetHashAlgorithm(DefaultAlgorithm)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		algorithm:   algorithm,
		bufferSize:  DefaultBufferSize,
		hashWorkers: DefaultHashWorkers,
		symlinkMode: SymlinkModeNone,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// NewBuilderFromConfig creates a builder from configuration values. Options
// are applied afterwards and take precedence.
func NewBuilderFromConfig(cfg *Config, opts ...BuilderOption) (*Builder, error) {
	all := cfg.GetAllConfig()

	bufferSize, err := ParseHumanSize(all.Performance.HashBuffer)
	if err != nil {
		return nil, fmt.Errorf("invalid hash buffer: %w", err)
	}

	base := []BuilderOption{
		WithAlgorithm(all.Hash.Default),
		WithBufferSize(bufferSize),
		WithHashWorkers(all.Performance.HashWorkers),
		WithSymlinkMode(all.Symlink.Mode),
	}
	return NewBuilder(append(base, opts...)...)
}

// Algorithm returns the algorithm used for new manifests
func (b *Builder) Algorithm() *HashAlgorithm {
	return b.algorithm
}

// Build walks root and returns a manifest of every regular file not in ignore
func (b *Builder) Build(root string, ignore *IgnoreSet) (*Manifest, error) {
	defer VerboseEnter()()

	absRoot, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	files, err := b.snapshot(absRoot, ignore, b.algorithm)
	if err != nil {
		return nil, err
	}
	VerboseLog(1, "Hashed %d files under %s in %v", len(files), absRoot, time.Since(start).Round(time.Millisecond))

	return &Manifest{
		Version:   CurrentManifestVersion,
		Root:      absRoot,
		Algorithm: b.algorithm.Name,
		Created:   time.Now().UTC().Format(time.RFC3339),
		Files:     files,
	}, nil
}

// resolveRoot returns the canonical absolute form of a directory path
func resolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %s: %w", ErrFilesystem, root, err)
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %s: %w", ErrFilesystem, root, err)
	}

	info, err := os.Stat(realRoot)
	if err != nil {
		return "", fmt.Errorf("%w: cannot access %s: %w", ErrFilesystem, root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	return realRoot, nil
}

// hashResult is the outcome of hashing one scanned file
type hashResult struct {
	relPath string
	record  FileRecord
	err     error
}

// snapshot hashes every non-ignored file under root
func (b *Builder) snapshot(root string, ignore *IgnoreSet, algorithm *HashAlgorithm) (map[string]FileRecord, error) {
	walker := NewWalker(root, b.symlinkMode)
	if b.hashWorkers <= 1 {
		return b.snapshotSequential(walker, ignore, algorithm)
	}
	return b.snapshotConcurrent(walker, ignore, algorithm)
}

// snapshotSequential hashes files one at a time in walk order
func (b *Builder) snapshotSequential(walker *Walker, ignore *IgnoreSet, algorithm *HashAlgorithm) (map[string]FileRecord, error) {
	files := make(map[string]FileRecord)

	for scanned, err := range walker.Files() {
		if err != nil {
			return nil, err
		}
		if ignore.ShouldIgnore(scanned.RelPath) {
			VerboseLog(2, "Ignoring %s", scanned.RelPath)
			continue
		}

		if err := checkPathEncoding(scanned); err != nil {
			return nil, err
		}

		record, err := HashFileInterruptible(scanned.AbsPath, algorithm, b.bufferSize, b.shutdownChan)
		if err != nil {
			return nil, err
		}
		if IsDebugEnabled("hash") {
			VerboseLog(3, "hash: %s %s (%d bytes)", record.Fingerprint, scanned.RelPath, record.Size)
		}
		files[scanned.RelPath] = record
	}

	return files, nil
}

// snapshotConcurrent feeds walk results to a pool of hash workers. The first
// error stops the walk and the remaining jobs; no partial result is returned.
func (b *Builder) snapshotConcurrent(walker *Walker, ignore *IgnoreSet, algorithm *HashAlgorithm) (map[string]FileRecord, error) {
	jobs := make(chan *ScannedPath, b.hashWorkers*2)
	results := make(chan hashResult, b.hashWorkers*2)
	abort := make(chan struct{})
	walkErr := make(chan error, 1)

	go func() {
		var err error
		defer func() {
			close(jobs)
			walkErr <- err
		}()

		for scanned, scanErr := range walker.Files() {
			if scanErr != nil {
				err = scanErr
				return
			}
			if ignore.ShouldIgnore(scanned.RelPath) {
				VerboseLog(2, "Ignoring %s", scanned.RelPath)
				continue
			}
			if err = checkPathEncoding(scanned); err != nil {
				return
			}
			select {
			case jobs <- scanned:
			case <-abort:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < b.hashWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scanned := range jobs {
				select {
				case <-abort:
					return
				default:
				}

				record, err := HashFileInterruptible(scanned.AbsPath, algorithm, b.bufferSize, b.shutdownChan)
				select {
				case results <- hashResult{relPath: scanned.RelPath, record: record, err: err}:
				case <-abort:
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	files := make(map[string]FileRecord)
	var firstErr error
	for res := range results {
		if firstErr != nil {
			continue
		}
		if res.err != nil {
			firstErr = res.err
			close(abort)
			continue
		}
		if IsDebugEnabled("hash") {
			VerboseLog(3, "hash: %s %s (%d bytes)", res.record.Fingerprint, res.relPath, res.record.Size)
		}
		files[res.relPath] = res.record
	}

	if err := <-walkErr; err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return files, nil
}

// checkPathEncoding rejects relative paths that are not valid UTF-8. JSON
// would replace the bad bytes, so such a path could never match itself on
// verify.
func checkPathEncoding(scanned *ScannedPath) error {
	if !utf8.ValidString(scanned.RelPath) {
		return fmt.Errorf("%w: path is not valid UTF-8 and cannot be stored in a manifest: %q", ErrFilesystem, scanned.RelPath)
	}
	return nil
}
