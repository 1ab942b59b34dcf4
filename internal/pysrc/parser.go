// Package pysrc parses Python source with tree-sitter and carries the small
// amount of syntax analysis the rewrite passes need: environment-global
// usage, virtual name declarations, and byte-range edits.
package pysrc

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseError reports a file tree-sitter could not fully parse. The position
// points at the first bad region.
type ParseError struct {
	File string
	Line uint32
	Col  uint32
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: invalid python syntax", e.File, e.Line, e.Col)
}

// File is one parsed Python source file.
type File struct {
	Name string
	Src  []byte
	tree *sitter.Tree
}

// Root returns the module node.
func (f *File) Root() *sitter.Node {
	return f.tree.RootNode()
}

// Text returns the source text a node spans.
func (f *File) Text(n *sitter.Node) string {
	return string(f.Src[n.StartByte():n.EndByte()])
}

// Parser wraps tree-sitter configured for Python.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a Python parser. Parsers are not safe for concurrent
// use; the engine is single-threaded anyway.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// ParseFile reads and parses one file from disk.
func (p *Parser) ParseFile(ctx context.Context, path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(ctx, path, src)
}

// Parse parses src. A tree containing error or missing nodes fails with a
// *ParseError; there is no meaningful partial result for a rewrite pass.
func (p *Parser) Parse(ctx context.Context, name string, src []byte) (*File, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		bad := firstBadNode(root)
		pt := bad.StartPoint()
		return nil, &ParseError{File: name, Line: pt.Row + 1, Col: pt.Column + 1}
	}
	return &File{Name: name, Src: src, tree: tree}, nil
}

func firstBadNode(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstBadNode(child)
		}
	}
	return node
}

// FindAll returns every node of the given type under node, depth-first.
func FindAll(node *sitter.Node, nodeType string) []*sitter.Node {
	var result []*sitter.Node
	if node.Type() == nodeType {
		result = append(result, node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		result = append(result, FindAll(node.Child(i), nodeType)...)
	}
	return result
}

// StringLiteral extracts the value of a plain Python string literal from its
// source text. Prefix letters and single, double and triple quotes are
// handled; escape sequences are returned as written.
func StringLiteral(text string) (string, bool) {
	i := 0
	for i < len(text) && text[i] != '"' && text[i] != '\'' {
		switch text[i] {
		case 'r', 'R', 'b', 'B', 'u', 'U', 'f', 'F':
			i++
		default:
			return "", false
		}
	}
	s := text[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)], true
		}
	}
	return "", false
}
