package fileintegrity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")

	original := &Manifest{
		Version:   CurrentManifestVersion,
		Root:      "/data/tree",
		Algorithm: "SHA-256",
		Created:   "2024-01-02T03:04:05Z",
		Files: map[string]FileRecord{
			"a.txt":        {Fingerprint: sha256Hello, Size: 5},
			"sub/b.txt":    {Fingerprint: sha256World, Size: 5},
			"sub/empty":    {Fingerprint: sha256Empty, Size: 0},
			"with space.x": {Fingerprint: sha256Hello, Size: 5},
		},
	}

	require.NoError(t, SaveManifest(manifestPath, original))

	loaded, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.True(t, original.Equal(loaded))
	assert.Equal(t, original.Root, loaded.Root)
	assert.Equal(t, original.Created, loaded.Created)
	assert.Equal(t, []string{"a.txt", "sub/b.txt", "sub/empty", "with space.x"}, loaded.SortedPaths())

	info, err := os.Stat(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// No temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveManifestFormat(t *testing.T) {
	manifestPath := filepath.Join(t.TempDir(), "m.json")
	m := &Manifest{
		Version:   1,
		Root:      "/r",
		Algorithm: "SHA-256",
		Files:     map[string]FileRecord{"a.txt": {Fingerprint: sha256Hello, Size: 5}},
	}
	require.NoError(t, SaveManifest(manifestPath, m))

	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasSuffix(text, "}\n"))
	assert.Contains(t, text, "\n  \"files\": {")
	assert.Contains(t, text, "\"sha256\": \""+sha256Hello+"\"")
	assert.NotContains(t, text, "created")
}

func TestSaveManifestOverwrites(t *testing.T) {
	manifestPath := filepath.Join(t.TempDir(), "m.json")
	first := &Manifest{Version: 1, Algorithm: "SHA-256", Files: map[string]FileRecord{"a": {Fingerprint: sha256Hello, Size: 5}}}
	second := &Manifest{Version: 1, Algorithm: "SHA-256", Files: map[string]FileRecord{}}

	require.NoError(t, SaveManifest(manifestPath, first))
	require.NoError(t, SaveManifest(manifestPath, second))

	loaded, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Empty(t, loaded.Files)
}

func TestSaveManifestMissingDirectory(t *testing.T) {
	err := SaveManifest(filepath.Join(t.TempDir(), "nope", "m.json"), &Manifest{Files: map[string]FileRecord{}})
	assert.True(t, errors.Is(err, ErrFilesystem))
}

func TestLoadManifestNotFound(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrManifestNotFound))
	assert.False(t, errors.Is(err, ErrManifestParse))
}

func TestLoadManifestRejectsMalformed(t *testing.T) {
	short := strings.Repeat("a", 63)
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json"},
		{"truncated", `{"version": 1, "files": {`},
		{"empty file", ""},
		{"missing files", `{"version": 1, "root": "/r", "algorithm": "SHA-256"}`},
		{"null files", `{"version": 1, "algorithm": "SHA-256", "files": null}`},
		{"future version", `{"version": 99, "algorithm": "SHA-256", "files": {}}`},
		{"unknown algorithm", `{"version": 1, "algorithm": "MD4", "files": {}}`},
		{"short fingerprint", `{"version": 1, "algorithm": "SHA-256", "files": {"a": {"sha256": "` + short + `", "size": 1}}}`},
		{"non-hex fingerprint", `{"version": 1, "algorithm": "SHA-256", "files": {"a": {"sha256": "` + short + `z", "size": 1}}}`},
		{"negative size", `{"version": 1, "algorithm": "SHA-256", "files": {"a": {"sha256": "` + sha256Hello + `", "size": -1}}}`},
		{"absolute path", `{"version": 1, "algorithm": "SHA-256", "files": {"/etc/passwd": {"sha256": "` + sha256Hello + `", "size": 5}}}`},
		{"parent segment", `{"version": 1, "algorithm": "SHA-256", "files": {"../x": {"sha256": "` + sha256Hello + `", "size": 5}}}`},
		{"files not a mapping", `{"version": 1, "algorithm": "SHA-256", "files": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifestPath := filepath.Join(t.TempDir(), "m.json")
			require.NoError(t, os.WriteFile(manifestPath, []byte(tt.content), 0644))

			m, err := LoadManifest(manifestPath)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, errors.Is(err, ErrManifestParse), "got %v", err)
		})
	}
}

func TestLoadManifestLegacyFormat(t *testing.T) {
	manifestPath := filepath.Join(t.TempDir(), "m.json")
	content := `{
  "root": "/old/root",
  "algorithm": "SHA-256",
  "files": {
    "a.txt": {"sha256": "` + strings.ToUpper(sha256Hello) + `", "size": 5}
  }
}`
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0644))

	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Version)
	assert.Equal(t, "/old/root", m.Root)
	assert.Equal(t, sha256Hello, m.Files["a.txt"].Fingerprint)
}

func TestLoadManifestDefaultsAlgorithm(t *testing.T) {
	manifestPath := filepath.Join(t.TempDir(), "m.json")
	content := `{"files": {"a.txt": {"sha256": "` + sha256Hello + `", "size": 5}}}`
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0644))

	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, m.Algorithm)

	algorithm, err := m.HashAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, uint16(HashTypeSHA256), algorithm.TypeID)
}

func TestManifestEqual(t *testing.T) {
	a := &Manifest{Algorithm: "SHA-256", Root: "/a", Files: map[string]FileRecord{"x": {Fingerprint: sha256Hello, Size: 5}}}
	b := &Manifest{Algorithm: "SHA-256", Root: "/b", Files: map[string]FileRecord{"x": {Fingerprint: sha256Hello, Size: 5}}}
	c := &Manifest{Algorithm: "SHA-256", Files: map[string]FileRecord{"x": {Fingerprint: sha256World, Size: 5}}}
	d := &Manifest{Algorithm: "BLAKE3", Files: map[string]FileRecord{"x": {Fingerprint: sha256Hello, Size: 5}}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
}

func TestWritevAll(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer file.Close()

	big := []byte(strings.Repeat("x", 256*1024))
	require.NoError(t, writevAll(file, [][]byte{[]byte("head-"), nil, big, []byte("-tail")}))
	require.NoError(t, file.Sync())

	data, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Equal(t, 5+len(big)+5, len(data))
	assert.True(t, strings.HasPrefix(string(data), "head-x"))
	assert.True(t, strings.HasSuffix(string(data), "x-tail"))
}
