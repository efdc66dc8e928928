package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestEngine_DefaultExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "main.go"), "package main\n")

	e, err := New(root, false, nil)
	require.NoError(t, err)

	assert.True(t, e.ShouldIgnore(filepath.Join(root, ".git"), true))
	assert.True(t, e.ShouldIgnore(filepath.Join(root, "node_modules"), true))
	assert.False(t, e.ShouldIgnore(filepath.Join(root, "src", "main.go"), false))
}

func TestEngine_DisableDefaults(t *testing.T) {
	root := t.TempDir()
	e, err := New(root, true, nil)
	require.NoError(t, err)

	assert.False(t, e.ShouldIgnore(filepath.Join(root, "node_modules"), true))
}

func TestEngine_HierarchicalOverride(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFileName), "*.log\n")
	writeFile(t, filepath.Join(root, "keep", IgnoreFileName), "!important.log\n")
	writeFile(t, filepath.Join(root, "keep", "important.log"), "x")
	writeFile(t, filepath.Join(root, "other.log"), "x")

	e, err := New(root, true, nil)
	require.NoError(t, err)

	assert.True(t, e.ShouldIgnore(filepath.Join(root, "other.log"), false))
	assert.False(t, e.ShouldIgnore(filepath.Join(root, "keep", "important.log"), false))
}

func TestEngine_NotifyFileChanged_InvalidatesDependentDecisions(t *testing.T) {
	root := t.TempDir()
	ignorePath := filepath.Join(root, IgnoreFileName)
	writeFile(t, ignorePath, "*.tmp\n")
	writeFile(t, filepath.Join(root, "a.tmp"), "x")

	e, err := New(root, true, nil)
	require.NoError(t, err)

	assert.True(t, e.ShouldIgnore(filepath.Join(root, "a.tmp"), false))

	writeFile(t, ignorePath, "# nothing ignored now\n")
	e.NotifyFileChanged(ignorePath)

	assert.False(t, e.ShouldIgnore(filepath.Join(root, "a.tmp"), false))
}

func TestEngine_NotifyFileChanged_Removal(t *testing.T) {
	root := t.TempDir()
	ignorePath := filepath.Join(root, "sub", IgnoreFileName)
	writeFile(t, ignorePath, "*.tmp\n")
	writeFile(t, filepath.Join(root, "sub", "a.tmp"), "x")

	e, err := New(root, true, nil)
	require.NoError(t, err)
	assert.True(t, e.ShouldIgnore(filepath.Join(root, "sub", "a.tmp"), false))

	require.NoError(t, os.Remove(ignorePath))
	e.NotifyFileChanged(ignorePath)

	assert.False(t, e.ShouldIgnore(filepath.Join(root, "sub", "a.tmp"), false))
}

func TestEngine_IgnoreFile_ZeroByte(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFileName), "")

	e, err := New(root, true, nil)
	require.NoError(t, err)

	reports := e.ValidateAll()
	for _, r := range reports {
		assert.True(t, r.Valid)
	}
}

func TestEngine_IgnoreFile_OversizeRejected(t *testing.T) {
	root := t.TempDir()
	huge := strings.Repeat("a", MaxIgnoreFileBytes+1)
	writeFile(t, filepath.Join(root, IgnoreFileName), huge)

	e, err := New(root, true, nil)
	require.NoError(t, err)

	reports := e.ValidateAll()
	var found bool
	for _, r := range reports {
		if !r.Valid {
			found = true
			require.NotEmpty(t, r.Errors)
		}
	}
	assert.True(t, found, "expected oversize ignore file to be reported invalid")
}

func TestEngine_IgnoreFile_PatternCountTruncated(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	for i := 0; i < MaxPatternsPerFile+50; i++ {
		b.WriteString("pattern")
		b.WriteString(strings.Repeat("x", i%5))
		b.WriteString("\n")
	}
	writeFile(t, filepath.Join(root, IgnoreFileName), b.String())

	e, err := New(root, true, nil)
	require.NoError(t, err)

	reports := e.ValidateAll()
	var warned bool
	for _, r := range reports {
		if len(r.Warnings) > 0 {
			warned = true
		}
	}
	assert.True(t, warned, "expected truncation warning when patterns exceed the cap")
}

func TestEngine_PatternsFor_OrderedRootFirst(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFileName), "*.log\n")
	writeFile(t, filepath.Join(root, "nested", IgnoreFileName), "*.tmp\n")

	e, err := New(root, true, nil)
	require.NoError(t, err)

	patterns := e.PatternsFor(filepath.Join(root, "nested", "file.tmp"))
	require.GreaterOrEqual(t, len(patterns), 2)
	assert.Equal(t, "*.log", patterns[0])
	assert.Equal(t, "*.tmp", patterns[len(patterns)-1])
}

func TestEngine_DecisionCache_Convergence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "x")

	e, err := New(root, true, nil)
	require.NoError(t, err)

	path := filepath.Join(root, "a.txt")
	first := e.ShouldIgnore(path, false)
	second := e.ShouldIgnore(path, false)
	assert.Equal(t, first, second)
	assert.False(t, first)
}
