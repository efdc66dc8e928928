package ignore

// DefaultExcludes is the built-in exclusion set applied at the workspace
// root unless disabled.
var DefaultExcludes = []string{
	// Version control
	".git/", ".svn/", ".hg/", ".bzr/",

	// Language virtualenvs and caches
	".venv/", "venv/", "env/", "__pycache__/",
	".mypy_cache/", ".pytest_cache/", ".tox/", "*.egg-info/",

	// JavaScript/TypeScript
	"node_modules/", ".npm/", ".yarn/", "*.tsbuildinfo",

	// Web build outputs
	"dist/", "build/", "out/", ".next/", ".nuxt/",
	".cache/", ".parcel-cache/", ".webpack/",

	// Native build artifacts
	"CMakeFiles/", "cmake-build-*/",
	"*.o", "*.obj", "*.a", "*.so", "*.dylib", "*.dll", "*.exe",

	// Editor files
	".vscode/", ".idea/", "*.swp", "*~",

	// OS files
	".DS_Store", "Thumbs.db",

	// Logs and databases
	"*.log", "*.sqlite*", "*.db",

	// Temp files
	"*.tmp", "*.bak", "*.old",

	// Archives and media
	"*.zip", "*.tar*", "*.png", "*.jpg", "*.jpeg", "*.gif",
	"*.mp4", "*.mov", "*.avi", "*.pdf",

	// Environment files
	".env", ".env.*", "!.env.example",
}

// DefaultTemplate is the ignore file `ragex init` scaffolds into a
// workspace. The built-in exclusions above already apply without it; the
// template documents the syntax and gives users a place to add their own.
var DefaultTemplate = `# Patterns for files ragex should not index.
# Syntax follows gitignore: one pattern per line, # for comments,
# trailing / for directories, ** for any depth, ! to re-include.

# Large generated sources
# generated/
# *.pb.go

# Fixtures that pollute search results
# testdata/fixtures/

# Re-include something a broader rule excluded
# !docs/build/index.md
`
