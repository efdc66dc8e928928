package symbol

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/codesearch/ragex/internal/ragexerr"
)

// Extractor parses files into Symbols. It holds the shared grammar registry;
// each Extract call clones its own tree-sitter parser instance so concurrent
// callers never share parser state.
type Extractor struct {
	reg *registry
}

// NewExtractor creates an Extractor with the built-in language registry
// (Python, JavaScript, TypeScript, TSX).
func NewExtractor() *Extractor {
	return &Extractor{reg: newRegistry()}
}

// SupportedExtensions lists the file extensions this extractor recognizes.
func (e *Extractor) SupportedExtensions() []string {
	return e.reg.extensions()
}

// LanguageForPath reports the language name registered for path's extension.
func (e *Extractor) LanguageForPath(path string) (string, bool) {
	cfg, ok := e.reg.forPath(path)
	if !ok {
		return "", false
	}
	return cfg.name, true
}

// Extract parses filePath and returns every Symbol found in it. A parse
// failure logs nothing itself (the caller decides how to surface it) and
// simply returns an error; the caller is expected to treat a
// single file's failure as an empty symbol list without aborting a batch.
func (e *Extractor) Extract(ctx context.Context, filePath string, includeDocsAndComments bool) ([]*Symbol, error) {
	cfg, ok := e.reg.forPath(filePath)
	if !ok {
		return nil, ragexerr.InvalidInput("unsupported file extension", nil).WithDetail("path", filePath)
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, ragexerr.IOError("read file for extraction", err).WithDetail("path", filePath)
	}

	sum := sha256.Sum256(source)
	checksum := hex.EncodeToString(sum[:])

	p := newParser()
	defer p.close()

	root, err := p.parse(ctx, source, cfg.grammar)
	if err != nil {
		return nil, ragexerr.ParseError("parse file", err).WithDetail("path", filePath)
	}

	lineOffsets := computeLineOffsets(source)

	ex := &extraction{
		cfg:             cfg,
		source:          source,
		filePath:        filePath,
		checksum:        checksum,
		includeDocs:     includeDocsAndComments,
		lineOffsets:     lineOffsets,
	}
	if includeDocsAndComments {
		ex.extractModuleDoc(root)
	}
	ex.walk(root, "", true)

	if includeDocsAndComments {
		ex.extractEnvVars()
	}

	return ex.symbols, nil
}

// extraction carries the mutable state for one Extract call.
type extraction struct {
	cfg         *languageConfig
	source      []byte
	filePath    string
	checksum    string
	includeDocs bool
	lineOffsets []int
	globalIndex int
	symbols     []*Symbol
}

func (ex *extraction) lineOf(byteOffset uint32) int {
	// Binary search over the line start offsets for the 1-based line that
	// contains byteOffset.
	lo, hi := 0, len(ex.lineOffsets)-1
	line := 1
	for lo <= hi {
		mid := (lo + hi) / 2
		if ex.lineOffsets[mid] <= int(byteOffset) {
			line = mid + 1
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return line
}

func computeLineOffsets(source []byte) []int {
	offsets := []int{0}
	for i, b := range source {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func (ex *extraction) nextID(kind Kind, name string, line int) string {
	id := fmt.Sprintf("%s:%d:%s:%s:%d", ex.filePath, line, kind, name, ex.globalIndex)
	ex.globalIndex++
	return id
}

func (ex *extraction) newSymbol(n *node, kind Kind, name, parent string) *Symbol {
	start := int(n.StartRow) + 1
	end := int(n.EndRow) + 1
	return &Symbol{
		ID:           ex.nextID(kind, name, start),
		Name:         name,
		Kind:         kind,
		File:         ex.filePath,
		Language:     ex.cfg.name,
		StartLine:    start,
		EndLine:      end,
		StartByte:    n.StartByte,
		EndByte:      n.EndByte,
		Parent:       parent,
		FileChecksum: ex.checksum,
	}
}

// walk recurses the parse tree, classifying nodes per cfg's vocabulary.
// parentClass names the innermost enclosing class/interface, if any.
// topLevel is true only while still in module scope (not inside a function
// or method body), which gates module-level-only symbol kinds (imports,
// constants, variables, module docstring).
func (ex *extraction) walk(n *node, parentClass string, topLevel bool) {
	if n == nil {
		return
	}

	switch {
	case contains(ex.cfg.classTypes, n.Type) || contains(ex.cfg.interfaceTypes, n.Type):
		kind := KindClass
		if contains(ex.cfg.interfaceTypes, n.Type) {
			kind = KindInterface
		}
		name := ex.extractName(n)
		if name == "" {
			ex.walkChildren(n, parentClass, topLevel)
			return
		}
		sym := ex.newSymbol(n, kind, name, parentClass)
		sym.Signature = ex.firstLineSignature(n)
		sym.CodeSnippet = n.content(ex.source)
		if ex.includeDocs {
			sym.Docstring = ex.docstringFor(n)
		}
		sym.MethodNames = ex.collectMethodNames(n)
		ex.symbols = append(ex.symbols, sym)
		ex.walkChildren(n, name, false)
		return

	case contains(ex.cfg.functionTypes, n.Type) || contains(ex.cfg.methodTypes, n.Type):
		name := ex.extractName(n)
		if name == "" {
			ex.walkChildren(n, parentClass, topLevel)
			return
		}
		kind := KindFunction
		if contains(ex.cfg.methodTypes, n.Type) || parentClass != "" {
			kind = KindMethod
		}
		sym := ex.newSymbol(n, kind, name, parentClass)
		sym.Signature = ex.firstLineSignature(n)
		sym.CodeSnippet = n.content(ex.source)
		if ex.includeDocs {
			sym.Docstring = ex.docstringFor(n)
		}
		ex.symbols = append(ex.symbols, sym)
		// nested functions are not methods of the outer class.
		ex.walkChildren(n, "", false)
		return

	case topLevel && contains(ex.cfg.importTypes, n.Type):
		ex.extractImport(n, KindImport)
		ex.walkChildren(n, parentClass, topLevel)
		return

	case topLevel && contains(ex.cfg.importFromTypes, n.Type):
		ex.extractImport(n, KindImportFrom)
		ex.walkChildren(n, parentClass, topLevel)
		return

	case topLevel && contains(ex.cfg.declarationTypes, n.Type):
		ex.extractDeclaration(n)
		ex.walkChildren(n, parentClass, topLevel)
		return

	case ex.includeDocs && n.Type == ex.cfg.commentType:
		ex.extractComment(n)
		return

	default:
		ex.walkChildren(n, parentClass, topLevel)
	}
}

func (ex *extraction) walkChildren(n *node, parentClass string, topLevel bool) {
	for _, c := range n.Children {
		ex.walk(c, parentClass, topLevel)
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// collectMethodNames scans a class/interface node's body for direct method
// or function definitions, capped at maxMethodNamesPerClass.
func (ex *extraction) collectMethodNames(classNode *node) []string {
	var names []string
	body := classNode
	if ex.cfg.classBodyType != "" {
		if b := classNode.childByType(ex.cfg.classBodyType); b != nil {
			body = b
		}
	}
	body.walk(func(cur, _ *node) bool {
		if len(names) >= maxMethodNamesPerClass {
			return false
		}
		if contains(ex.cfg.methodTypes, cur.Type) || contains(ex.cfg.functionTypes, cur.Type) {
			if name := ex.extractName(cur); name != "" {
				names = append(names, name)
			}
		}
		return true
	})
	if len(names) > maxMethodNamesPerClass {
		names = names[:maxMethodNamesPerClass]
	}
	return names
}

// extractModuleDoc checks only the file's first top-level statement: a
// Python module docstring is the first expression statement in the module
// body; for the comment-based languages, a module doc is a block comment
// that starts at line 1.
func (ex *extraction) extractModuleDoc(root *node) {
	if len(root.Children) == 0 {
		return
	}
	first := root.Children[0]

	if ex.cfg.name == "python" {
		if first.Type == "expression_statement" {
			if s := first.childByType(ex.cfg.stringType); s != nil {
				sym := ex.newSymbol(first, KindModuleDoc, "", "")
				sym.Docstring = unquote(s.content(ex.source))
				sym.CodeSnippet = first.content(ex.source)
				ex.symbols = append(ex.symbols, sym)
			}
		}
		return
	}

	if first.Type == ex.cfg.commentType && first.StartRow == 0 {
		sym := ex.newSymbol(first, KindModuleDoc, "", "")
		sym.Docstring = stripCommentMarkers(first.content(ex.source))
		sym.CodeSnippet = first.content(ex.source)
		ex.symbols = append(ex.symbols, sym)
	}
}

// docstringFor returns the docstring associated with a function/method/class
// node: for Python, the first string-literal statement in its body; for
// C-style-comment languages, an immediately preceding comment.
func (ex *extraction) docstringFor(n *node) string {
	if ex.cfg.name == "python" {
		body := n.childByType("block")
		if body == nil {
			return ""
		}
		for _, c := range body.Children {
			if c.Type == "expression_statement" {
				if s := c.childByType(ex.cfg.stringType); s != nil {
					return unquote(s.content(ex.source))
				}
			}
			if c.Type != "comment" {
				break
			}
		}
		return ""
	}
	return ex.precedingComment(n)
}

// precedingComment returns the text of a comment node whose end line is
// immediately before n's start line, with comment markers stripped.
func (ex *extraction) precedingComment(n *node) string {
	if n.StartRow == 0 {
		return ""
	}
	lineStart := ex.lineOffsets[n.StartRow]
	if lineStart == 0 {
		return ""
	}
	prevLineIdx := int(n.StartRow) - 1
	if prevLineIdx < 0 || prevLineIdx >= len(ex.lineOffsets) {
		return ""
	}
	start := ex.lineOffsets[prevLineIdx]
	end := lineStart - 1
	if end < start || end > len(ex.source) {
		return ""
	}
	prevLine := strings.TrimSpace(string(ex.source[start:end]))
	if strings.HasPrefix(prevLine, "//") || strings.HasPrefix(prevLine, "/*") || strings.HasPrefix(prevLine, "*") {
		return stripCommentMarkers(prevLine)
	}
	return ""
}

func stripCommentMarkers(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "*")
	return strings.TrimSpace(s)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return s
}

func (ex *extraction) firstLineSignature(n *node) string {
	content := n.content(ex.source)
	if content == "" {
		return ""
	}
	firstLine := strings.SplitN(content, "\n", 2)[0]
	firstLine = strings.TrimSpace(firstLine)
	if idx := strings.Index(firstLine, "{"); idx != -1 {
		return strings.TrimSpace(firstLine[:idx])
	}
	return firstLine
}

// extractName finds a node's identifying name using the grammar's usual
// identifier child node types, trying the common shapes across the four
// supported languages.
func (ex *extraction) extractName(n *node) string {
	if c := n.childByType("identifier"); c != nil {
		return c.content(ex.source)
	}
	if c := n.childByType("property_identifier"); c != nil {
		return c.content(ex.source)
	}
	if c := n.childByType("type_identifier"); c != nil {
		return c.content(ex.source)
	}
	// JS/TS variable_declarator-wrapped const/let/var and arrow/function exprs.
	if decls := n.childrenByType("variable_declarator"); len(decls) > 0 {
		return ex.extractName(decls[0])
	}
	return ""
}

func (ex *extraction) extractImport(n *node, kind Kind) {
	content := strings.TrimSpace(n.content(ex.source))
	name := importModuleName(content, ex.cfg.name)
	sym := ex.newSymbol(n, kind, name, "")
	sym.CodeSnippet = content
	ex.symbols = append(ex.symbols, sym)
}

var (
	pyImportRe     = regexp.MustCompile(`^import\s+([\w.]+)`)
	pyImportFromRe = regexp.MustCompile(`^from\s+([\w.]+)\s+import`)
	jsImportRe     = regexp.MustCompile(`from\s+['"]([^'"]+)['"]`)
	jsBareImportRe = regexp.MustCompile(`import\s+['"]([^'"]+)['"]`)
)

func importModuleName(content, lang string) string {
	switch lang {
	case "python":
		if m := pyImportFromRe.FindStringSubmatch(content); m != nil {
			return m[1]
		}
		if m := pyImportRe.FindStringSubmatch(content); m != nil {
			return m[1]
		}
	default:
		if m := jsImportRe.FindStringSubmatch(content); m != nil {
			return m[1]
		}
		if m := jsBareImportRe.FindStringSubmatch(content); m != nil {
			return m[1]
		}
	}
	return ""
}

var constNameRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// extractDeclaration classifies a module-level assignment/declaration as a
// constant or a variable by naming heuristic: all-caps names,
// or names containing "config"/"setting".
func (ex *extraction) extractDeclaration(n *node) {
	name, target := ex.declarationTarget(n)
	if name == "" {
		return
	}
	kind := KindVariable
	lower := strings.ToLower(name)
	if constNameRe.MatchString(name) || strings.Contains(lower, "config") || strings.Contains(lower, "setting") {
		kind = KindConstant
	}
	sym := ex.newSymbol(target, kind, name, "")
	sym.CodeSnippet = target.content(ex.source)
	ex.symbols = append(ex.symbols, sym)
}

// declarationTarget finds the identifier being assigned and the node whose
// span should represent the whole declaration.
func (ex *extraction) declarationTarget(n *node) (string, *node) {
	if ex.cfg.name == "python" {
		assign := n.childByType("assignment")
		if assign == nil {
			return "", n
		}
		if id := assign.childByType("identifier"); id != nil {
			return id.content(ex.source), n
		}
		return "", n
	}
	if decls := n.childrenByType("variable_declarator"); len(decls) > 0 {
		if id := decls[0].childByType("identifier"); id != nil {
			return id.content(ex.source), n
		}
	}
	return "", n
}

func (ex *extraction) extractComment(n *node) {
	text := n.content(ex.source)
	category := CommentPlain
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "TODO"):
		category = CommentTODO
	case strings.Contains(upper, "FIXME"):
		category = CommentFIXME
	}
	sym := ex.newSymbol(n, KindComment, string(category), "")
	sym.CodeSnippet = text
	sym.Docstring = stripCommentMarkers(text)
	ex.symbols = append(ex.symbols, sym)
}

var (
	pyEnvGetenvRe  = regexp.MustCompile(`os\.getenv\(\s*["']([^"']+)["']`)
	pyEnvEnvironRe = regexp.MustCompile(`os\.environ(?:\.get)?\(?\[?\s*["']([^"']+)["']`)
	jsProcessEnvRe = regexp.MustCompile(`process\.env\.([A-Za-z_][A-Za-z0-9_]*)`)
	jsProcessEnvBr = regexp.MustCompile(`process\.env\[\s*["']([^"']+)["']`)
)

// extractEnvVars finds environment-variable access patterns anywhere in the
// source text. This runs as a regex pass over raw source rather than the
// parse tree, since the access idiom (os.getenv, process.env.X) is far more
// uniform textually than structurally across the two language families.
func (ex *extraction) extractEnvVars() {
	text := string(ex.source)
	patterns := []*regexp.Regexp{pyEnvGetenvRe, pyEnvEnvironRe, jsProcessEnvRe, jsProcessEnvBr}
	seen := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			name := text[m[2]:m[3]]
			key := fmt.Sprintf("%s@%d", name, m[0])
			if seen[key] {
				continue
			}
			seen[key] = true
			line := ex.lineOf(uint32(m[0]))
			sym := &Symbol{
				ID:           ex.nextID(KindEnvVar, name, line),
				Name:         name,
				Kind:         KindEnvVar,
				File:         ex.filePath,
				Language:     ex.cfg.name,
				StartLine:    line,
				EndLine:      line,
				StartByte:    uint32(m[0]),
				EndByte:      uint32(m[1]),
				FileChecksum: ex.checksum,
				CodeSnippet:  text[m[0]:m[1]],
			}
			ex.symbols = append(ex.symbols, sym)
		}
	}
}
