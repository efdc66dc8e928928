package embed

import (
	"regexp"
	"sort"
	"strings"

	"github.com/codesearch/ragex/internal/symbol"
)

// stopwords are dropped when extracting keywords from code bodies; a symbol's
// name alone is too sparse for natural-language queries, so the embedder
// input is enriched with identifiers pulled from the surrounding code.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "if": true,
	"else": true, "for": true, "while": true, "return": true, "def": true,
	"function": true, "class": true, "import": true, "from": true, "const": true,
	"let": true, "var": true, "self": true, "this": true, "true": true, "false": true,
	"none": true, "null": true, "is": true, "in": true, "not": true, "of": true,
	"to": true, "with": true, "as": true, "pass": true, "break": true, "continue": true,
}

var identifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// callTargetRe matches a bare identifier immediately followed by "(",
// a reasonable proxy for "this code calls X" without a full parse.
var callTargetRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// envKeywordCategories maps substrings of an env var name to a human
// category tag, checked in order so the most specific tag wins.
var envKeywordCategories = []struct {
	match    string
	category string
}{
	{"secret", "credentials/secrets"},
	{"token", "credentials/secrets"},
	{"password", "credentials/secrets"},
	{"key", "credentials/secrets"},
	{"host", "configuration/connection"},
	{"port", "configuration/connection"},
	{"url", "configuration/connection"},
	{"endpoint", "configuration/connection"},
	{"timeout", "configuration/connection"},
	{"path", "filesystem/paths"},
	{"dir", "filesystem/paths"},
	{"file", "filesystem/paths"},
	{"log", "debugging/logging"},
	{"debug", "debugging/logging"},
	{"verbose", "debugging/logging"},
}

// importKeywordCategories maps substrings of a module path to a category tag.
var importKeywordCategories = []struct {
	match    string
	category string
}{
	{"os", "system"},
	{"sys", "system"},
	{"path", "system"},
	{"numpy", "data science"},
	{"pandas", "data science"},
	{"torch", "data science"},
	{"sklearn", "data science"},
	{"tensorflow", "data science"},
	{"http", "networking/http"},
	{"requests", "networking/http"},
	{"fetch", "networking/http"},
	{"axios", "networking/http"},
	{"net", "networking/http"},
	{"socket", "networking/http"},
}

// BuildSymbolContext assembles the structured multi-line embedder input for
// a Symbol. The exact field set depends on sym.Kind: a symbol's
// bare name is too sparse for natural-language queries, so each template
// injects the domain signals (name variations, keywords, category tags)
// that a generic text encoder can exploit.
func BuildSymbolContext(sym *symbol.Symbol) string {
	switch sym.Kind {
	case symbol.KindFunction, symbol.KindMethod:
		return buildFunctionContext(sym)
	case symbol.KindClass, symbol.KindInterface:
		return buildClassContext(sym)
	case symbol.KindImport, symbol.KindImportFrom:
		return buildImportContext(sym)
	case symbol.KindEnvVar:
		return buildEnvVarContext(sym)
	default:
		return buildGenericContext(sym)
	}
}

func buildFunctionContext(sym *symbol.Symbol) string {
	var b strings.Builder
	b.WriteString("Type: " + string(sym.Kind) + "\n")
	b.WriteString("Name: " + sym.Name + "\n")
	if variations := nameVariations(sym.Name); variations != "" {
		b.WriteString("Name variations: " + variations + "\n")
	}
	b.WriteString("Language: " + sym.Language + "\n")
	b.WriteString("File: " + sym.File + "\n")
	if sym.Signature != "" {
		b.WriteString("Signature: " + sym.Signature + "\n")
	}
	if sym.Docstring != "" {
		b.WriteString("Documentation: " + sym.Docstring + "\n")
	}
	if sym.Parent != "" {
		b.WriteString("Parent: " + sym.Parent + "\n")
	}
	if kw := extractKeywords(sym.CodeSnippet); len(kw) > 0 {
		b.WriteString("Keywords: " + strings.Join(kw, ", ") + "\n")
	}
	if calls := extractCallTargets(sym.CodeSnippet); len(calls) > 0 {
		b.WriteString("Calls: " + strings.Join(calls, ", ") + "\n")
	}
	if lines := firstNLines(sym.CodeSnippet, 5); lines != "" {
		b.WriteString("Code:\n" + lines + "\n")
	}
	return b.String()
}

func buildClassContext(sym *symbol.Symbol) string {
	var b strings.Builder
	b.WriteString("Type: " + string(sym.Kind) + "\n")
	b.WriteString("Name: " + sym.Name + "\n")
	if sym.Signature != "" {
		b.WriteString("Signature: " + sym.Signature + "\n")
	}
	if sym.Docstring != "" {
		b.WriteString("Documentation: " + sym.Docstring + "\n")
	}
	if len(sym.MethodNames) > 0 {
		special, public, private := categorizeMethodNames(sym.MethodNames)
		if len(special) > 0 {
			b.WriteString("Special methods: " + strings.Join(special, ", ") + "\n")
		}
		if len(public) > 0 {
			b.WriteString("Public methods: " + strings.Join(public, ", ") + "\n")
		}
		if len(private) > 0 {
			b.WriteString("Private methods: " + strings.Join(private, ", ") + "\n")
		}
	}
	if header := firstNLines(sym.CodeSnippet, 1); header != "" {
		b.WriteString("Header: " + header + "\n")
	}
	return b.String()
}

func buildImportContext(sym *symbol.Symbol) string {
	var b strings.Builder
	b.WriteString("Type: " + string(sym.Kind) + "\n")
	b.WriteString("Module: " + sym.Name + "\n")
	if sym.Parent != "" {
		b.WriteString("Parent package: " + sym.Parent + "\n")
	}
	if cat := categorize(sym.Name, importKeywordCategories); cat != "" {
		b.WriteString("Category: " + cat + "\n")
	}
	return b.String()
}

func buildEnvVarContext(sym *symbol.Symbol) string {
	var b strings.Builder
	b.WriteString("Type: " + string(sym.Kind) + "\n")
	b.WriteString("Variable: " + sym.Name + "\n")
	if sym.Signature != "" {
		b.WriteString("Access pattern: " + sym.Signature + "\n")
	}
	if cat := categorize(strings.ToLower(sym.Name), envKeywordCategories); cat != "" {
		b.WriteString("Category: " + cat + "\n")
	}
	b.WriteString("File: " + sym.File + "\n")
	if ctx := firstNLines(sym.CodeSnippet, 2); ctx != "" {
		b.WriteString("Context:\n" + ctx + "\n")
	}
	return b.String()
}

// buildGenericContext covers constant, comment, module_doc, and variable
// symbols with an analogous structured template.
func buildGenericContext(sym *symbol.Symbol) string {
	var b strings.Builder
	b.WriteString("Type: " + string(sym.Kind) + "\n")
	if sym.Name != "" {
		b.WriteString("Name: " + sym.Name + "\n")
	}
	b.WriteString("File: " + sym.File + "\n")
	if sym.Docstring != "" {
		b.WriteString("Documentation: " + sym.Docstring + "\n")
	}
	if sym.CodeSnippet != "" {
		b.WriteString("Code:\n" + firstNLines(sym.CodeSnippet, 5) + "\n")
	}
	return b.String()
}

// nameVariations produces snake_case→spaced, camelCase→spaced, and a
// private-prefix annotation, joined for inclusion in the embedder input.
func nameVariations(name string) string {
	var variations []string

	if strings.Contains(name, "_") {
		variations = append(variations, strings.ReplaceAll(name, "_", " "))
	}

	if spaced := camelToSpaced(name); spaced != name {
		variations = append(variations, spaced)
	}

	trimmed := strings.TrimLeft(name, "_")
	if trimmed != name {
		variations = append(variations, "private: "+trimmed)
	}

	return strings.Join(variations, ", ")
}

func camelToSpaced(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// extractKeywords pulls identifiers out of a code snippet, lowercases them,
// drops stopwords and one-character tokens, dedups, and returns at most 20
// in alphabetical order.
func extractKeywords(code string) []string {
	if code == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, match := range identifierRe.FindAllString(code, -1) {
		lower := strings.ToLower(match)
		if len(lower) < 2 || stopwords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	sort.Strings(out)
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// extractCallTargets finds identifiers immediately followed by "(", a
// reasonable proxy for invoked function/method names within a code snippet.
func extractCallTargets(code string) []string {
	if code == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range callTargetRe.FindAllStringSubmatch(code, -1) {
		name := m[1]
		lower := strings.ToLower(name)
		if stopwords[lower] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func firstNLines(code string, n int) string {
	if code == "" {
		return ""
	}
	lines := strings.Split(code, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// categorizeMethodNames splits a class's method names into special (dunder
// or constructor-like), public, and private buckets for the class template.
func categorizeMethodNames(names []string) (special, public, private []string) {
	for _, name := range names {
		switch {
		case strings.HasPrefix(name, "__") || name == "constructor":
			special = append(special, name)
		case strings.HasPrefix(name, "_"):
			private = append(private, name)
		default:
			public = append(public, name)
		}
	}
	return special, public, private
}

func categorize(value string, table []struct {
	match    string
	category string
}) string {
	for _, entry := range table {
		if strings.Contains(value, entry.match) {
			return entry.category
		}
	}
	return ""
}
