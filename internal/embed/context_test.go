package embed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codesearch/ragex/internal/symbol"
)

func TestBuildSymbolContext_Function(t *testing.T) {
	sym := &symbol.Symbol{
		Kind:        symbol.KindFunction,
		Name:        "parse_config",
		Language:    "python",
		File:        "config.py",
		Signature:   "def parse_config(path):",
		Docstring:   "Parses a config file.",
		CodeSnippet: "def parse_config(path):\n    data = load(path)\n    return validate(data)",
	}

	ctx := BuildSymbolContext(sym)
	assert.Contains(t, ctx, "Type: function")
	assert.Contains(t, ctx, "Name: parse_config")
	assert.Contains(t, ctx, "parse config")
	assert.Contains(t, ctx, "Language: python")
	assert.Contains(t, ctx, "Signature: def parse_config(path):")
	assert.Contains(t, ctx, "Documentation: Parses a config file.")
	assert.Contains(t, ctx, "Calls:")
	assert.Contains(t, ctx, "load")
	assert.Contains(t, ctx, "validate")
}

func TestBuildSymbolContext_Method_HasParent(t *testing.T) {
	sym := &symbol.Symbol{
		Kind:   symbol.KindMethod,
		Name:   "render",
		Parent: "Widget",
		File:   "widget.py",
	}
	ctx := BuildSymbolContext(sym)
	assert.Contains(t, ctx, "Parent: Widget")
}

func TestBuildSymbolContext_Class_CategorizesMethods(t *testing.T) {
	sym := &symbol.Symbol{
		Kind:        symbol.KindClass,
		Name:        "Widget",
		MethodNames: []string{"__init__", "render", "_internal_helper"},
		CodeSnippet: "class Widget:",
	}
	ctx := BuildSymbolContext(sym)
	assert.Contains(t, ctx, "Special methods: __init__")
	assert.Contains(t, ctx, "Public methods: render")
	assert.Contains(t, ctx, "Private methods: _internal_helper")
	assert.Contains(t, ctx, "Header: class Widget:")
}

func TestBuildSymbolContext_Import_CategorizesNetworking(t *testing.T) {
	sym := &symbol.Symbol{
		Kind: symbol.KindImportFrom,
		Name: "requests",
	}
	ctx := BuildSymbolContext(sym)
	assert.Contains(t, ctx, "Module: requests")
	assert.Contains(t, ctx, "Category: networking/http")
}

func TestBuildSymbolContext_EnvVar_CategorizesSecrets(t *testing.T) {
	sym := &symbol.Symbol{
		Kind:        symbol.KindEnvVar,
		Name:        "RAGEX_API_SECRET",
		Signature:   `os.getenv("RAGEX_API_SECRET")`,
		File:        "cfg.py",
		CodeSnippet: `secret = os.getenv("RAGEX_API_SECRET")`,
	}
	ctx := BuildSymbolContext(sym)
	assert.Contains(t, ctx, "Variable: RAGEX_API_SECRET")
	assert.Contains(t, ctx, "Category: credentials/secrets")
	assert.Contains(t, ctx, "Access pattern:")
}

func TestBuildSymbolContext_ModuleDoc_UsesGenericTemplate(t *testing.T) {
	sym := &symbol.Symbol{
		Kind:      symbol.KindModuleDoc,
		File:      "widget.py",
		Docstring: "Widget module.",
	}
	ctx := BuildSymbolContext(sym)
	assert.Contains(t, ctx, "Type: module_doc")
	assert.Contains(t, ctx, "Documentation: Widget module.")
}

func TestExtractKeywords_DropsStopwordsAndDedups(t *testing.T) {
	kw := extractKeywords("def render(self): return self.value if self.value else None")
	assert.NotContains(t, kw, "self")
	assert.NotContains(t, kw, "if")
	assert.NotContains(t, kw, "else")
	assert.NotContains(t, kw, "def")
	assert.NotContains(t, kw, "return")
	assert.Contains(t, kw, "render")
	assert.Contains(t, kw, "value")

	count := 0
	for _, k := range kw {
		if k == "value" {
			count++
		}
	}
	assert.Equal(t, 1, count, "expected deduped keywords")
}

func TestNameVariations_SnakeAndCamelAndPrivate(t *testing.T) {
	assert.True(t, strings.Contains(nameVariations("max_retries"), "max retries"))
	assert.True(t, strings.Contains(nameVariations("maxRetries"), "max retries"))
	assert.True(t, strings.Contains(nameVariations("_internal"), "private: internal"))
}
