// Package checksum computes SHA-256 content hashes for tracked source files
// and diffs a current scan against a stored manifest.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codesearch/ragex/internal/ragexerr"
)

// chunkSize is the streaming read size used when hashing file content.
const chunkSize = 8 * 1024

// mtimeTolerance is the fast-path window within which a cached (size, mtime)
// tuple is considered unchanged.
const mtimeTolerance = 100 * time.Millisecond

// IgnoreEngine is the subset of internal/ignore.Engine the checksummer needs.
type IgnoreEngine interface {
	ShouldIgnore(path string, isDir bool) bool
}

// statEntry is one fast-path cache entry keyed by absolute path.
type statEntry struct {
	size     int64
	mtime    time.Time
	checksum string
}

// Checksummer computes and caches content checksums for files under a single
// host-visible workspace root. It refuses to operate without that root
// resolved, so all persisted records share one path namespace.
type Checksummer struct {
	hostRoot string

	mu    sync.Mutex
	cache map[string]statEntry
}

// New creates a Checksummer rooted at hostRoot, the host-visible absolute
// workspace path. An empty hostRoot means the host path mapping could not be
// established (e.g. a container mount with no translation), and the system
// must refuse to operate rather than persist records under an ambiguous
// namespace.
func New(hostRoot string) (*Checksummer, error) {
	if hostRoot == "" {
		return nil, ragexerr.ConfigMismatch("host workspace path is unavailable; refusing to checksum under an ambiguous path namespace", nil)
	}
	abs, err := filepath.Abs(hostRoot)
	if err != nil {
		return nil, ragexerr.IOError("resolve host workspace path", err)
	}
	return &Checksummer{hostRoot: abs, cache: make(map[string]statEntry)}, nil
}

// Checksum computes the SHA-256 hex digest of path's content, streaming it in
// 8 KiB chunks rather than reading the whole file into memory.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ragexerr.IOError("open file for checksum", err).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", ragexerr.IOError("read file for checksum", err).WithDetail("path", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// checksumCached is Checksum with the (size, mtime) fast path: if info
// matches a cached tuple within mtimeTolerance, the cached checksum is reused
// without rereading the file.
func (c *Checksummer) checksumCached(path string, info os.FileInfo) (string, error) {
	c.mu.Lock()
	entry, ok := c.cache[path]
	c.mu.Unlock()

	if ok && entry.size == info.Size() {
		delta := entry.mtime.Sub(info.ModTime())
		if delta < 0 {
			delta = -delta
		}
		if delta <= mtimeTolerance {
			return entry.checksum, nil
		}
	}

	sum, err := Checksum(path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[path] = statEntry{size: info.Size(), mtime: info.ModTime(), checksum: sum}
	c.mu.Unlock()

	return sum, nil
}

// Scan walks root, skipping anything ignore reports as excluded, and returns
// a map of host-visible absolute path to content checksum. Unreadable files
// and subdirectories are skipped; a root that cannot be read is returned as
// an error.
func (c *Checksummer) Scan(root string, ignore IgnoreEngine) (map[string]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, ragexerr.IOError("resolve scan root", err)
	}

	out := make(map[string]string)

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			return nil
		}
		if path == absRoot {
			return nil
		}
		isDir := info.IsDir()
		if ignore != nil && ignore.ShouldIgnore(path, isDir) {
			if isDir {
				return filepath.SkipDir
			}
			return nil
		}
		if isDir {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		sum, sumErr := c.checksumCached(path, info)
		if sumErr != nil {
			return nil
		}
		out[c.toHostPath(path)] = sum
		return nil
	})
	if err != nil {
		return nil, ragexerr.IOError("scan workspace", err)
	}
	return out, nil
}

// toHostPath ensures a path discovered under hostRoot is represented as the
// absolute host-visible path shared by every persisted record.
func (c *Checksummer) toHostPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// Diff compares a freshly computed checksum map against one reconstructed
// from stored metadata, classifying every key into added, removed, or
// modified (same key, different checksum).
func Diff(current, stored map[string]string) (added, removed, modified []string) {
	for path, sum := range current {
		prev, existed := stored[path]
		if !existed {
			added = append(added, path)
			continue
		}
		if prev != sum {
			modified = append(modified, path)
		}
	}
	for path := range stored {
		if _, stillPresent := current[path]; !stillPresent {
			removed = append(removed, path)
		}
	}
	return added, removed, modified
}

// InvalidateCache drops any fast-path entry for path, forcing a full rehash
// next time it's scanned (used when a caller knows content changed out of
// band of mtime, e.g. an atomic overwrite tool that preserves mtime).
func (c *Checksummer) InvalidateCache(path string) {
	c.mu.Lock()
	delete(c.cache, path)
	c.mu.Unlock()
}
