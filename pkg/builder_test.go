package fileintegrity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDemoTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "hello",
		"b.txt": "world",
	})

	m, err := newTestBuilder(t, 1).Build(root, nil)
	require.NoError(t, err)

	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	assert.Equal(t, CurrentManifestVersion, m.Version)
	assert.Equal(t, realRoot, m.Root)
	assert.Equal(t, "SHA-256", m.Algorithm)
	assert.NotEmpty(t, m.Created)
	assert.Equal(t, map[string]FileRecord{
		"a.txt": {Fingerprint: sha256Hello, Size: 5},
		"b.txt": {Fingerprint: sha256World, Size: 5},
	}, m.Files)
}

func TestBuildDeterministic(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"one.txt":        "1",
		"dir/two.txt":    "2",
		"dir/sub/three":  "3",
		"empty":          "",
		"Upper/Case.TXT": "case",
		"dir/with space": "spaced",
	})

	builder := newTestBuilder(t, 2)
	first, err := builder.Build(root, nil)
	require.NoError(t, err)
	second, err := builder.Build(root, nil)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, first.SortedPaths(), second.SortedPaths())
	assert.Equal(t, sha256Empty, first.Files["empty"].Fingerprint)
}

func TestBuildWorkerCountIndependent(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for i := 0; i < 60; i++ {
		files[fmt.Sprintf("d%d/file%02d.dat", i%5, i)] = fmt.Sprintf("content %d", i)
	}
	writeTree(t, root, files)

	var manifests []*Manifest
	for _, workers := range []int{1, 2, 4, 16} {
		m, err := newTestBuilder(t, workers).Build(root, nil)
		require.NoError(t, err)
		require.Len(t, m.Files, 60)
		manifests = append(manifests, m)
	}
	for _, m := range manifests[1:] {
		assert.True(t, manifests[0].Equal(m))
	}
}

func TestBuildAppliesIgnore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":       "keep",
		"Secret.txt":     "hidden",
		"logs/app.log":   "log",
		"logs/other.log": "other",
	})

	for _, workers := range []int{1, 4} {
		m, err := newTestBuilder(t, workers).Build(root, NewIgnoreSet("secret.txt", "logs/app.log"))
		require.NoError(t, err)
		assert.Equal(t, []string{"keep.txt", "logs/other.log"}, m.SortedPaths())
	}
}

func TestBuildAlgorithms(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "hello"})

	tests := []struct {
		name   string
		hexLen int
	}{
		{"SHA-1", 40},
		{"sha256", 64},
		{"SHA-512", 128},
		{"blake3", 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newTestBuilder(t, 1, WithAlgorithm(tt.name)).Build(root, nil)
			require.NoError(t, err)
			assert.Len(t, m.Files["a.txt"].Fingerprint, tt.hexLen)
		})
	}
}

func TestBuildRootErrors(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0644))

	_, err := newTestBuilder(t, 1).Build(filepath.Join(dir, "missing"), nil)
	assert.True(t, errors.Is(err, ErrFilesystem))

	_, err = newTestBuilder(t, 1).Build(filePath, nil)
	assert.True(t, errors.Is(err, ErrNotDirectory))
}

func TestBuildInterrupted(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "a", "b": "b", "c": "c"})

	shutdown := make(chan struct{})
	close(shutdown)

	for _, workers := range []int{1, 4} {
		m, err := newTestBuilder(t, workers, WithShutdown(shutdown)).Build(root, nil)
		assert.Nil(t, m)
		assert.True(t, errors.Is(err, ErrInterrupted), "workers=%d: %v", workers, err)
	}
}

func TestBuildUnreadableFileAborts(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a", "b.txt": "b"})
	require.NoError(t, os.Chmod(filepath.Join(root, "b.txt"), 0000))

	for _, workers := range []int{1, 4} {
		m, err := newTestBuilder(t, workers).Build(root, nil)
		assert.Nil(t, m)
		assert.True(t, errors.Is(err, ErrFilesystem))
	}
}

func TestBuilderOptionValidation(t *testing.T) {
	_, err := NewBuilder(WithAlgorithm("md5"))
	assert.True(t, errors.Is(err, ErrUnsupportedAlgorithm))

	_, err = NewBuilder(WithHashWorkers(0))
	assert.Error(t, err)

	_, err = NewBuilder(WithBufferSize(0))
	assert.Error(t, err)

	_, err = NewBuilder(WithSymlinkMode("sometimes"))
	assert.Error(t, err)

	b, err := NewBuilder()
	require.NoError(t, err)
	assert.Equal(t, "SHA-256", b.Algorithm().Name)
	assert.Equal(t, DefaultHashWorkers, b.hashWorkers)
	assert.Equal(t, SymlinkModeNone, b.symlinkMode)
}

func TestNewBuilderFromConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyOverrides([]string{"default:blake3", "hash_workers:2", "hash_buffer:64K", "mode:contained"}))

	b, err := NewBuilderFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "BLAKE3", b.Algorithm().Name)
	assert.Equal(t, 2, b.hashWorkers)
	assert.Equal(t, 64*1024, b.bufferSize)
	assert.Equal(t, SymlinkModeContained, b.symlinkMode)

	b, err = NewBuilderFromConfig(cfg, WithAlgorithm("SHA-512"))
	require.NoError(t, err)
	assert.Equal(t, "SHA-512", b.Algorithm().Name)
}

// writeNonUTF8File creates a file whose name is not valid UTF-8, skipping
// the test on filesystems that refuse such names.
func writeNonUTF8File(t *testing.T, root string) string {
	t.Helper()
	name := "bad\xff.txt"
	if err := os.WriteFile(filepath.Join(root, name), []byte("bytes"), 0644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}
	return name
}

func TestBuildRejectsNonUTF8Path(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"good.txt": "good"})
	writeNonUTF8File(t, root)

	for _, workers := range []int{1, 4} {
		m, err := newTestBuilder(t, workers).Build(root, nil)
		assert.Nil(t, m)
		require.Error(t, err, "workers=%d", workers)
		assert.True(t, errors.Is(err, ErrFilesystem))
		assert.Contains(t, err.Error(), `bad\xff.txt`)
	}
}

func TestBuildIgnoredNonUTF8Path(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"good.txt": "good"})
	name := writeNonUTF8File(t, root)

	m, err := newTestBuilder(t, 1).Build(root, NewIgnoreSet(name))
	require.NoError(t, err)
	assert.Equal(t, []string{"good.txt"}, m.SortedPaths())
}
