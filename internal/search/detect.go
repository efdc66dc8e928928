package search

import (
	"regexp"
	"strings"
)

// Auto-detection probes, applied in a fixed order; the first
// match wins.
var (
	screamingCasePattern = regexp.MustCompile(`^[A-Z][A-Z_]+[A-Z]$`)
	identifierPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	classDefPattern      = regexp.MustCompile(`^(class|def|func|function)\s+[A-Za-z_][A-Za-z0-9_]*$`)
	callShapePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\($`)
	naturalPhrasePattern = regexp.MustCompile(`(?i)\b(that|which|how|where|what|handles|processes|manages|creates|returns|parses|validates|computes)\b`)
)

var envIdioms = []string{
	"env var", "environment variable", "getenv", "process.env", "os.environ",
	"config value", "configuration setting", "dotenv",
}

// wellKnownEnvVars lists common environment variable names; a query equal
// to one of them selects semantic mode. Every entry also matches the
// SCREAMING_CASE probe above, which is checked first.
var wellKnownEnvVars = []string{
	"PATH", "HOME", "DATABASE_URL", "API_KEY", "SECRET_KEY", "PORT",
	"NODE_ENV", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
}

var importIdioms = []string{
	"import ", "from ", "require(", "module ", "package ", "dependency",
}

// commonLibraries triggers semantic mode for queries naming a library,
// which usually want the import sites and surrounding usage rather than a
// literal text match.
var commonLibraries = []string{
	"numpy", "pandas", "requests", "flask", "django", "pytest", "sqlalchemy",
	"express", "react", "lodash", "axios", "webpack",
}

// DetectMode applies the auto-detection heuristic: rules are
// tried in order and the first match decides the mode.
func DetectMode(query string) Mode {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)
	words := strings.Fields(trimmed)

	// 1. Environment/configuration idioms and env-var shapes.
	if screamingCasePattern.MatchString(trimmed) {
		return ModeSemantic
	}
	for _, idiom := range envIdioms {
		if strings.Contains(lower, idiom) {
			return ModeSemantic
		}
	}
	for _, name := range wellKnownEnvVars {
		if trimmed == name {
			return ModeSemantic
		}
	}

	// 2. Import-related tokens and common library names.
	for _, idiom := range importIdioms {
		if strings.Contains(lower, idiom) {
			return ModeSemantic
		}
	}
	for _, lib := range commonLibraries {
		for _, w := range words {
			if strings.ToLower(w) == lib {
				return ModeSemantic
			}
		}
	}

	// 3. Regex meta-characters.
	if strings.ContainsAny(trimmed, `.*+?[]{}^$|\`) {
		return ModeRegex
	}

	// 4. Identifier shapes: bare identifier, `class Foo`, `def foo`, `foo(`.
	if identifierPattern.MatchString(trimmed) ||
		classDefPattern.MatchString(trimmed) ||
		callShapePattern.MatchString(trimmed) {
		return ModeSymbol
	}

	// 5. Natural-language phrases.
	if len(words) > 1 && naturalPhrasePattern.MatchString(trimmed) {
		return ModeSemantic
	}

	// 6. Defaults.
	if len(words) >= 3 {
		return ModeSemantic
	}
	if identifierPattern.MatchString(trimmed) {
		return ModeSymbol
	}
	return ModeRegex
}
