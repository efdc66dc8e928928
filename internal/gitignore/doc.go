// Package gitignore compiles and matches gitignore-syntax patterns, the
// rule layer underneath the workspace ignore engine: .mcpignore files use
// this exact syntax (https://git-scm.com/docs/gitignore).
//
// Supported: wildcards (*, ?, **), rooted patterns (/build), negations
// (!important.log), directory-only patterns (build/), and per-directory
// pattern bases so a rule file deep in the tree only applies below its
// own directory. Matching is thread-safe; the last matching rule wins,
// which is what lets a later negation re-include an excluded path.
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	if m.Match("error.log", false) {
//	    // ignored
//	}
package gitignore
