package symbol

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageConfig holds the grammar and the node-type vocabulary the
// extractor matches against for one supported language.
type languageConfig struct {
	name       string
	extensions []string
	grammar    *sitter.Language

	functionTypes  []string
	methodTypes    []string // nested function/method nodes when parent is a class body
	classTypes     []string
	interfaceTypes []string
	classBodyType  string // node type holding a class's members

	importTypes     []string // bare/side-effect imports
	importFromTypes []string // "from X import Y" / "import {Y} from X"

	declarationTypes []string // assignment/lexical/var declarations, module scope
	commentType      string
	stringType       string // literal node type used for docstrings
}

// registry maps extensions and language names to their languageConfig.
type registry struct {
	mu      sync.RWMutex
	byExt   map[string]*languageConfig
	byName  map[string]*languageConfig
}

func newRegistry() *registry {
	r := &registry{
		byExt:  make(map[string]*languageConfig),
		byName: make(map[string]*languageConfig),
	}
	r.register(pythonConfig())
	r.register(javascriptConfig())
	r.register(typescriptConfig())
	r.register(tsxConfig())
	return r
}

func (r *registry) register(c *languageConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[c.name] = c
	for _, ext := range c.extensions {
		r.byExt[ext] = c
	}
}

func (r *registry) forExtension(ext string) (*languageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byExt[strings.ToLower(ext)]
	return c, ok
}

func (r *registry) forPath(path string) (*languageConfig, bool) {
	return r.forExtension(filepath.Ext(path))
}

func (r *registry) extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}

func pythonConfig() *languageConfig {
	return &languageConfig{
		name:             "python",
		extensions:       []string{".py"},
		grammar:          python.GetLanguage(),
		functionTypes:    []string{"function_definition"},
		classTypes:       []string{"class_definition"},
		classBodyType:    "block",
		importTypes:      []string{"import_statement"},
		importFromTypes:  []string{"import_from_statement"},
		declarationTypes: []string{"expression_statement"}, // module-level `NAME = value` wraps an assignment
		commentType:      "comment",
		stringType:       "string",
	}
}

func javascriptConfig() *languageConfig {
	return &languageConfig{
		name:             "javascript",
		extensions:       []string{".js", ".mjs", ".jsx"},
		grammar:          javascript.GetLanguage(),
		functionTypes:    []string{"function_declaration", "function", "arrow_function", "function_expression"},
		methodTypes:      []string{"method_definition"},
		classTypes:       []string{"class_declaration"},
		classBodyType:    "class_body",
		importTypes:      []string{"import_statement"},
		declarationTypes: []string{"lexical_declaration", "variable_declaration"},
		commentType:      "comment",
		stringType:       "string",
	}
}

func typescriptConfig() *languageConfig {
	return &languageConfig{
		name:             "typescript",
		extensions:       []string{".ts"},
		grammar:          typescript.GetLanguage(),
		functionTypes:    []string{"function_declaration", "function", "arrow_function", "function_expression"},
		methodTypes:      []string{"method_definition"},
		classTypes:       []string{"class_declaration"},
		interfaceTypes:   []string{"interface_declaration"},
		classBodyType:    "class_body",
		importTypes:      []string{"import_statement"},
		declarationTypes: []string{"lexical_declaration", "variable_declaration"},
		commentType:      "comment",
		stringType:       "string",
	}
}

func tsxConfig() *languageConfig {
	c := *typescriptConfig()
	c.name = "tsx"
	c.extensions = []string{".tsx"}
	c.grammar = tsx.GetLanguage()
	return &c
}
