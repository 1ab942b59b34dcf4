package rewrite

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"saltmigrate/internal/pysrc"
)

// mockShim is the legacy testing-support compatibility module; its standard
// replacement ships with the interpreter.
const (
	mockShim    = "tests.support.mock"
	mockShimNew = "unittest.mock"
)

// ImportRewriter rewrites references to relocated modules throughout the
// destination tree: import statements, dotted references in code, and
// string arguments of mock-patching calls in tests. Rewrites are in place
// and idempotent; new names never match the old vocabulary again.
type ImportRewriter struct {
	parser   *pysrc.Parser
	destRoot string
	log      *slog.Logger

	codeMap  map[string]string
	codeKeys []string
	testMap  map[string]string
	testKeys []string
}

// NewImportRewriter builds a rewriter over the old -> new dotted module
// mapping. moduleImports applies everywhere; testImports (relocated test
// fixture modules) and the fixed mock shim apply under tests/ only.
func NewImportRewriter(parser *pysrc.Parser, destRoot string, moduleImports, testImports map[string]string, log *slog.Logger) *ImportRewriter {
	codeMap := make(map[string]string, len(moduleImports))
	for k, v := range moduleImports {
		codeMap[k] = v
	}
	testMap := make(map[string]string, len(codeMap)+len(testImports)+1)
	for k, v := range codeMap {
		testMap[k] = v
	}
	for k, v := range testImports {
		testMap[k] = v
	}
	testMap[mockShim] = mockShimNew
	return &ImportRewriter{
		parser:   parser,
		destRoot: destRoot,
		log:      log,
		codeMap:  codeMap,
		codeKeys: sortKeysLongestFirst(codeMap),
		testMap:  testMap,
		testKeys: sortKeysLongestFirst(testMap),
	}
}

// Tree rewrites every Python file under <destRoot>/src and <destRoot>/tests
// in path order and returns the number of files changed.
func (r *ImportRewriter) Tree(ctx context.Context) (int, error) {
	changed := 0
	for _, sub := range []string{"src", "tests"} {
		root := filepath.Join(r.destRoot, sub)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".py") {
				return nil
			}
			modified, err := r.File(ctx, path)
			if err != nil {
				return err
			}
			if modified {
				changed++
			}
			return nil
		})
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// File rewrites one file in place and reports whether it changed.
func (r *ImportRewriter) File(ctx context.Context, path string) (bool, error) {
	rel, err := filepath.Rel(r.destRoot, path)
	if err != nil {
		return false, err
	}
	rel = filepath.ToSlash(rel)
	underTests := strings.HasPrefix(rel, "tests/")

	f, err := r.parser.ParseFile(ctx, path)
	if err != nil {
		return false, err
	}
	edits := r.fileEdits(f, underTests)
	if len(edits) == 0 {
		return false, nil
	}
	out, err := pysrc.Apply(f.Src, edits)
	if err != nil {
		return false, fmt.Errorf("apply edits to %s: %w", path, err)
	}
	if err := writeBack(path, out); err != nil {
		return false, err
	}
	r.log.Debug("rewrote module references", "file", rel, "edits", len(edits))
	return true, nil
}

func (r *ImportRewriter) fileEdits(f *pysrc.File, underTests bool) []pysrc.Edit {
	keys, mapping := r.codeKeys, r.codeMap
	if underTests {
		keys, mapping = r.testKeys, r.testMap
	}
	var edits []pysrc.Edit
	editedStrings := make(map[uint32]struct{})
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "attribute", "dotted_name":
			if e, ok := dottedEdit(f, n, keys, mapping); ok {
				edits = append(edits, e)
				// The whole chain is handled; shorter prefixes below would
				// produce overlapping edits.
				return
			}
		case "import_from_statement":
			if e, ok := fromImportEdit(f, n, keys, mapping); ok {
				edits = append(edits, e)
			}
		case "call":
			if underTests && isPatchCall(f, n) {
				edits = append(edits, r.patchStringEdits(f, n, editedStrings)...)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(f.Root())
	return edits
}

// dottedEdit matches a dotted reference that is, or starts with, one of the
// old module paths on an identifier boundary. Only the matched prefix is
// replaced, so trailing attribute access stays put.
func dottedEdit(f *pysrc.File, n *sitter.Node, keys []string, mapping map[string]string) (pysrc.Edit, bool) {
	text := f.Text(n)
	for _, old := range keys {
		if text == old || strings.HasPrefix(text, old+".") {
			return pysrc.Edit{
				Start: n.StartByte(),
				End:   n.StartByte() + uint32(len(old)),
				Text:  mapping[old],
			}, true
		}
	}
	return pysrc.Edit{}, false
}

// fromImportEdit rewrites `from <parent> import <leaf>` statements where
// parent+leaf form one of the old module paths. Only the module part is
// replaced; names and aliases stay put.
func fromImportEdit(f *pysrc.File, stmt *sitter.Node, keys []string, mapping map[string]string) (pysrc.Edit, bool) {
	modNode := stmt.ChildByFieldName("module_name")
	if modNode == nil || modNode.Type() != "dotted_name" {
		return pysrc.Edit{}, false
	}
	modText := f.Text(modNode)
	for _, old := range keys {
		dot := strings.LastIndex(old, ".")
		if dot < 0 || modText != old[:dot] {
			continue
		}
		if !importsLeaf(f, stmt, modNode, old[dot+1:]) {
			continue
		}
		newPath := mapping[old]
		nd := strings.LastIndex(newPath, ".")
		if nd < 0 {
			continue
		}
		return pysrc.Edit{
			Start: modNode.StartByte(),
			End:   modNode.EndByte(),
			Text:  newPath[:nd],
		}, true
	}
	return pysrc.Edit{}, false
}

func importsLeaf(f *pysrc.File, stmt, modNode *sitter.Node, leaf string) bool {
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		if child.StartByte() == modNode.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			if f.Text(child) == leaf {
				return true
			}
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil && f.Text(name) == leaf {
				return true
			}
		}
	}
	return false
}

var patchCallNames = []string{"patch", "patch.dict", "patch.object", "patch.multiple"}

func isPatchCall(f *pysrc.File, call *sitter.Node) bool {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	switch fn.Type() {
	case "identifier", "attribute":
	default:
		return false
	}
	text := f.Text(fn)
	for _, name := range patchCallNames {
		if text == name || strings.HasSuffix(text, "."+name) {
			return true
		}
	}
	return false
}

// patchStringEdits substring-replaces old module paths inside the string
// arguments of a mock-patching call, including strings nested in dict
// literals for patch.dict. Interpolated strings are left to the dotted
// reference pass.
func (r *ImportRewriter) patchStringEdits(f *pysrc.File, call *sitter.Node, seen map[uint32]struct{}) []pysrc.Edit {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var edits []pysrc.Edit
	for _, s := range pysrc.FindAll(args, "string") {
		if _, done := seen[s.StartByte()]; done {
			continue
		}
		if len(pysrc.FindAll(s, "interpolation")) > 0 {
			continue
		}
		text := f.Text(s)
		replaced := text
		for _, old := range r.codeKeys {
			replaced = strings.ReplaceAll(replaced, old, r.codeMap[old])
		}
		if replaced == text {
			continue
		}
		seen[s.StartByte()] = struct{}{}
		edits = append(edits, pysrc.Edit{Start: s.StartByte(), End: s.EndByte(), Text: replaced})
	}
	return edits
}

func sortKeysLongestFirst(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
