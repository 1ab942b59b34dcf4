package pysrc

import sitter "github.com/smacker/go-tree-sitter"

// DefaultEnvGlobals returns the names the Salt loader injects into module
// globals at load time. Code referencing any of them depends on loader
// state and cannot run standalone without refactoring.
func DefaultEnvGlobals() []string {
	return []string{
		"__active_provider_name__",
		"__context__",
		"__env__",
		"__events__",
		"__executors__",
		"__grains__",
		"__instance_id__",
		"__jid_event__",
		"__low__",
		"__lowstate__",
		"__master_opts__",
		"__opts__",
		"__pillar__",
		"__proxy__",
		"__reg__",
		"__ret__",
		"__runner__",
		"__running__",
		"__salt__",
		"__salt_system_encoding__",
		"__serializers__",
		"__states__",
		"__utils__",
	}
}

// EnvGlobalSet builds a lookup set from a vocabulary slice.
func EnvGlobalSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Analysis holds the per-file facts the dunder rewrite needs.
type Analysis struct {
	// UsesEnvGlobals is true when any identifier reference matches the
	// environment-globals vocabulary.
	UsesEnvGlobals bool
	// DeclaredName is the string assigned to __virtualname__ at module
	// level, or "" when the file declares none.
	DeclaredName string
}

// Analyze inspects a parsed file without executing it. Identifier
// references are checked against the vocabulary; attribute and keyword
// argument names are positions, not references, and do not count.
func Analyze(f *File, envGlobals map[string]struct{}) Analysis {
	var a Analysis
	for _, id := range FindAll(f.Root(), "identifier") {
		if isNamePosition(id) {
			continue
		}
		if _, ok := envGlobals[f.Text(id)]; ok {
			a.UsesEnvGlobals = true
			break
		}
	}
	a.DeclaredName = declaredName(f)
	return a
}

// isNamePosition reports whether id names a member rather than referencing
// a binding: the attribute part of obj.attr, or a keyword argument name.
func isNamePosition(id *sitter.Node) bool {
	parent := id.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "attribute":
		attr := parent.ChildByFieldName("attribute")
		return attr != nil && attr.StartByte() == id.StartByte()
	case "keyword_argument":
		name := parent.ChildByFieldName("name")
		return name != nil && name.StartByte() == id.StartByte()
	}
	return false
}

// declaredName finds a module-level `__virtualname__ = "..."` assignment
// and returns its literal value.
func declaredName(f *File) string {
	root := f.Root()
	for i := 0; i < int(root.ChildCount()); i++ {
		stmt := root.Child(i)
		if stmt.Type() != "expression_statement" {
			continue
		}
		for j := 0; j < int(stmt.NamedChildCount()); j++ {
			assign := stmt.NamedChild(j)
			if assign.Type() != "assignment" {
				continue
			}
			left := assign.ChildByFieldName("left")
			right := assign.ChildByFieldName("right")
			if left == nil || right == nil {
				continue
			}
			if left.Type() != "identifier" || f.Text(left) != "__virtualname__" {
				continue
			}
			if right.Type() != "string" {
				continue
			}
			if value, ok := StringLiteral(f.Text(right)); ok {
				return value
			}
		}
	}
	return ""
}
