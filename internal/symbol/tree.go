package symbol

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch/ragex/internal/ragexerr"
)

// node is a language-agnostic view over a tree-sitter parse tree, kept
// separate from *sitter.Node so extraction code never touches cgo-adjacent
// types directly.
type node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartRow   uint32
	EndRow     uint32
	HasError   bool
	Children   []*node
	fieldNames map[int]string // child index -> field name; convert leaves it nil
}

func (n *node) content(source []byte) string {
	if n == nil || n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

func (n *node) childByType(t string) *node {
	for _, c := range n.Children {
		if c.Type == t {
			return c
		}
	}
	return nil
}

func (n *node) childrenByType(t string) []*node {
	var out []*node
	for _, c := range n.Children {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) walk(fn func(*node, *node) bool) {
	var visit func(cur, parent *node)
	visit = func(cur, parent *node) {
		if !fn(cur, parent) {
			return
		}
		for _, c := range cur.Children {
			visit(c, cur)
		}
	}
	visit(n, nil)
}

// parser wraps a single tree-sitter parser instance. One is cloned per
// extraction job from the shared grammar registry.
type parser struct {
	ts *sitter.Parser
}

func newParser() *parser {
	return &parser{ts: sitter.NewParser()}
}

func (p *parser) close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

func (p *parser) parse(ctx context.Context, source []byte, lang *sitter.Language) (*node, error) {
	p.ts.SetLanguage(lang)
	tree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, ragexerr.ParseError("tree-sitter parse failed", err)
	}
	if tree == nil {
		return nil, ragexerr.ParseError("tree-sitter returned nil tree", fmt.Errorf("nil tree"))
	}
	return convert(tree.RootNode()), nil
}

func convert(n *sitter.Node) *node {
	if n == nil {
		return nil
	}
	out := &node{
		Type:     n.Type(),
		StartByte: n.StartByte(),
		EndByte:  n.EndByte(),
		StartRow: n.StartPoint().Row,
		EndRow:   n.EndPoint().Row,
		HasError: n.HasError(),
		Children: make([]*node, 0, int(n.ChildCount())),
	}
	for i := uint32(0); i < n.ChildCount(); i++ {
		child := n.Child(int(i))
		if child != nil {
			out.Children = append(out.Children, convert(child))
		}
	}
	return out
}
