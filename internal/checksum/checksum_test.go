package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_MatchesSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	content := []byte("hello world")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	got, err := Checksum(path)
	require.NoError(t, err)

	want := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestChecksum_MissingFile(t *testing.T) {
	_, err := Checksum(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

type allowAll struct{}

func (allowAll) ShouldIgnore(path string, isDir bool) bool { return false }

func TestScan_ReturnsChecksumForEveryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.go"), []byte("package b"), 0o644))

	cs, err := New(dir)
	require.NoError(t, err)

	got, err := cs.Scan(dir, allowAll{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

type denyDir string

func (d denyDir) ShouldIgnore(path string, isDir bool) bool {
	return isDir && filepath.Base(path) == string(d)
}

func TestScan_RespectsIgnoreEngine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "lib.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	cs, err := New(dir)
	require.NoError(t, err)

	got, err := cs.Scan(dir, denyDir("vendor"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNew_RefusesEmptyHostRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestDiff_ClassifiesAddedRemovedModified(t *testing.T) {
	stored := map[string]string{
		"a.go": "sum-a",
		"b.go": "sum-b",
		"c.go": "sum-c",
	}
	current := map[string]string{
		"a.go": "sum-a",    // unchanged
		"b.go": "sum-b-v2", // modified
		"d.go": "sum-d",    // added
	}

	added, removed, modified := Diff(current, stored)
	assert.ElementsMatch(t, []string{"d.go"}, added)
	assert.ElementsMatch(t, []string{"c.go"}, removed)
	assert.ElementsMatch(t, []string{"b.go"}, modified)
}

func TestChecksumCached_FastPathReusesWithinTolerance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	cs, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	first, err := cs.checksumCached(path, info)
	require.NoError(t, err)

	// Overwrite content but keep the same mtime/size reported to the cache,
	// simulating a cached (size, mtime) tuple within the ±0.1s fast path.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	sameSizeInfo := fakeFileInfo{size: info.Size(), mtime: info.ModTime()}
	second, err := cs.checksumCached(path, sameSizeInfo)
	require.NoError(t, err)

	assert.Equal(t, first, second, "fast path should reuse cached checksum when size/mtime match within tolerance")
}

type fakeFileInfo struct {
	size  int64
	mtime time.Time
}

func (f fakeFileInfo) Name() string       { return "" }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return f.mtime }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() interface{}   { return nil }
