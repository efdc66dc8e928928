// Package symbol parses source files into structural Symbols using a
// tree-sitter-backed parser and per-language extraction rules.
package symbol

// Kind enumerates the structural unit a Symbol represents.
type Kind string

const (
	KindFunction   Kind = "function"
	KindMethod     Kind = "method"
	KindClass      Kind = "class"
	KindInterface  Kind = "interface"
	KindImport     Kind = "import"
	KindImportFrom Kind = "import_from"
	KindConstant   Kind = "constant"
	KindEnvVar     Kind = "env_var"
	KindComment    Kind = "comment"
	KindModuleDoc  Kind = "module_doc"
	KindVariable   Kind = "variable"
)

// Symbol is a structural unit extracted from a file.
type Symbol struct {
	ID           string
	Name         string
	Kind         Kind
	File         string
	Language     string
	StartLine    int
	EndLine      int
	StartByte    uint32
	EndByte      uint32
	Parent       string // enclosing class/interface name, if any
	Signature    string
	Docstring    string
	CodeSnippet  string
	FileChecksum string

	// MethodNames lists the method names defined inside a class/interface
	// symbol, capped at maxMethodNamesPerClass so embedder context stays
	// bounded.
	MethodNames []string
}

// maxMethodNamesPerClass bounds the method-name list attached to a class or
// interface symbol.
const maxMethodNamesPerClass = 20

// CommentCategory classifies a comment symbol's marker, if any.
type CommentCategory string

const (
	CommentPlain CommentCategory = "plain"
	CommentTODO  CommentCategory = "todo"
	CommentFIXME CommentCategory = "fixme"
)
