package symbol

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func kindsOf(syms []*Symbol) map[Kind]int {
	out := make(map[Kind]int)
	for _, s := range syms {
		out[s.Kind]++
	}
	return out
}

func TestExtract_Python_FunctionsClassesImports(t *testing.T) {
	src := `"""Module docstring."""
import os
from collections import OrderedDict

MAX_RETRIES = 3

class Widget:
    """A widget."""

    def render(self):
        """Render it."""
        return True

def build():
    return Widget()
`
	path := writeSource(t, "widget.py", src)

	e := NewExtractor()
	syms, err := e.Extract(context.Background(), path, true)
	require.NoError(t, err)
	require.NotEmpty(t, syms)

	counts := kindsOf(syms)
	assert.Equal(t, 1, counts[KindModuleDoc])
	assert.Equal(t, 1, counts[KindImport])
	assert.Equal(t, 1, counts[KindImportFrom])
	assert.Equal(t, 1, counts[KindClass])
	assert.Equal(t, 1, counts[KindMethod])
	assert.Equal(t, 1, counts[KindFunction])
	assert.Equal(t, 1, counts[KindConstant])

	var class *Symbol
	for _, s := range syms {
		if s.Kind == KindClass {
			class = s
		}
	}
	require.NotNil(t, class)
	assert.Equal(t, "Widget", class.Name)
	assert.Contains(t, class.MethodNames, "render")

	for _, s := range syms {
		if s.Kind == KindMethod {
			assert.Equal(t, "Widget", s.Parent)
		}
	}
}

func TestExtract_Python_EnvVarAccess(t *testing.T) {
	src := `import os

def host():
    return os.getenv("RAGEX_HOST")
`
	path := writeSource(t, "cfg.py", src)

	e := NewExtractor()
	syms, err := e.Extract(context.Background(), path, true)
	require.NoError(t, err)

	var found bool
	for _, s := range syms {
		if s.Kind == KindEnvVar && s.Name == "RAGEX_HOST" {
			found = true
		}
	}
	assert.True(t, found, "expected an env_var symbol for RAGEX_HOST")
}

func TestExtract_TypeScript_ClassAndInterface(t *testing.T) {
	src := `interface Greeter {
  greet(): string;
}

class EnglishGreeter implements Greeter {
  greet(): string {
    return "hello";
  }
}

function main() {
  return new EnglishGreeter().greet();
}
`
	path := writeSource(t, "greet.ts", src)

	e := NewExtractor()
	syms, err := e.Extract(context.Background(), path, true)
	require.NoError(t, err)

	counts := kindsOf(syms)
	assert.Equal(t, 1, counts[KindInterface])
	assert.Equal(t, 1, counts[KindClass])
	assert.GreaterOrEqual(t, counts[KindMethod], 1)
	assert.GreaterOrEqual(t, counts[KindFunction], 1)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	path := writeSource(t, "notes.txt", "just text")
	e := NewExtractor()
	_, err := e.Extract(context.Background(), path, false)
	assert.Error(t, err)
}

func TestExtract_SymbolIDsUnique(t *testing.T) {
	src := `def a():
    pass

def b():
    pass
`
	path := writeSource(t, "funcs.py", src)
	e := NewExtractor()
	syms, err := e.Extract(context.Background(), path, false)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, s := range syms {
		assert.False(t, seen[s.ID], "duplicate symbol id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestExtract_FileChecksumMatchesContent(t *testing.T) {
	path := writeSource(t, "a.py", "def f():\n    pass\n")
	e := NewExtractor()
	syms, err := e.Extract(context.Background(), path, false)
	require.NoError(t, err)
	require.NotEmpty(t, syms)

	first := syms[0].FileChecksum
	for _, s := range syms {
		assert.Equal(t, first, s.FileChecksum)
	}
}

func TestExtractAll_ParallelBatchesAllFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, string(rune('a'+i))+".py")
		require.NoError(t, os.WriteFile(p, []byte("def f():\n    pass\n"), 0o644))
		paths = append(paths, p)
	}

	e := NewExtractor()
	results := e.ExtractAll(context.Background(), paths, false)
	require.Len(t, results, len(paths))
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotEmpty(t, r.Symbols)
	}
}
