package pysrc

import (
	"bytes"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Edit replaces the half-open byte range [Start, End) of a source buffer.
// Insertions use Start == End.
type Edit struct {
	Start uint32
	End   uint32
	Text  string
}

// Apply returns a copy of src with all edits applied. Ranges must lie
// inside src and must not overlap; overlap is a bug in the caller, not an
// input condition, so it fails loudly instead of picking a winner.
func Apply(src []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return src, nil
	}
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	// Stable keeps same-offset insertions in caller order.
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})
	var out bytes.Buffer
	pos := uint32(0)
	for _, e := range sorted {
		if e.End < e.Start || int(e.End) > len(src) {
			return nil, fmt.Errorf("edit range [%d, %d) out of bounds (len %d)", e.Start, e.End, len(src))
		}
		if e.Start < pos {
			return nil, fmt.Errorf("overlapping edit at byte %d", e.Start)
		}
		out.Write(src[pos:e.Start])
		out.WriteString(e.Text)
		pos = e.End
	}
	out.Write(src[pos:])
	return out.Bytes(), nil
}

// EnsureImport builds an edit adding `import <module>` to f unless an
// identical plain import already exists. The statement goes after the last
// top-level import, else after the module docstring, else at the very top.
func EnsureImport(f *File, module string) (Edit, bool) {
	if hasPlainImport(f, module) {
		return Edit{}, false
	}
	root := f.Root()
	var lastImport *sitter.Node
	var docstring *sitter.Node
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			lastImport = child
		case "expression_statement":
			if docstring == nil && lastImport == nil && i == firstStatementIndex(root) {
				if s := child.NamedChild(0); s != nil && s.Type() == "string" {
					docstring = child
				}
			}
		}
	}
	switch {
	case lastImport != nil:
		off := lastImport.EndByte()
		return Edit{Start: off, End: off, Text: "\nimport " + module}, true
	case docstring != nil:
		off := docstring.EndByte()
		return Edit{Start: off, End: off, Text: "\n\nimport " + module}, true
	default:
		return Edit{Start: 0, End: 0, Text: "import " + module + "\n"}, true
	}
}

// firstStatementIndex returns the index of the first non-comment child of
// the module node.
func firstStatementIndex(root *sitter.Node) int {
	for i := 0; i < int(root.ChildCount()); i++ {
		if root.Child(i).Type() != "comment" {
			return i
		}
	}
	return -1
}

// hasPlainImport reports whether a top-level `import <module>` statement
// already binds the full dotted name. Aliased imports bind the alias, not
// the dotted name, and do not count.
func hasPlainImport(f *File, module string) bool {
	root := f.Root()
	for i := 0; i < int(root.ChildCount()); i++ {
		stmt := root.Child(i)
		if stmt.Type() != "import_statement" {
			continue
		}
		for j := 0; j < int(stmt.NamedChildCount()); j++ {
			name := stmt.NamedChild(j)
			if name.Type() == "dotted_name" && f.Text(name) == module {
				return true
			}
		}
	}
	return false
}
