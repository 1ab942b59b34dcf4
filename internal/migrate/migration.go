package migrate

import (
	"fmt"
	"sort"
	"strings"

	"saltmigrate/internal/relocate"
)

// Migration holds the classified candidate set and the fully built rename
// table for one run. Construction does all the work; a built Migration is
// read-only.
type Migration struct {
	extName    string
	candidates []relocate.Path
	classifier *relocate.Classifier
	table      *relocate.Table
	categories map[relocate.Category][]relocate.Path
}

// NewMigration classifies the candidates and fills the rename table.
// Candidates are processed in sorted order within each category, so the
// same selection always yields the same table. exists probes the Salt
// checkout for test collision detection; avoid switches the collision
// policy to upfront disambiguation.
func NewMigration(extName string, candidates []relocate.Path, exists relocate.ExistsFunc, avoid bool) (*Migration, error) {
	ordered := make([]relocate.Path, len(candidates))
	copy(ordered, candidates)
	relocate.SortPaths(ordered)

	m := &Migration{
		extName:    extName,
		candidates: ordered,
		classifier: relocate.NewClassifier(extName),
		table:      relocate.NewTable(ordered, exists),
		categories: make(map[relocate.Category][]relocate.Path),
	}
	for _, p := range ordered {
		cat := m.classifier.Category(p)
		m.categories[cat] = append(m.categories[cat], p)
	}

	resolver := relocate.NewResolver(m.table, avoid)
	for _, p := range m.categories[relocate.CategoryModule] {
		dest, _ := m.classifier.Destination(p)
		if err := m.table.Assign(p, dest); err != nil {
			return nil, fmt.Errorf("relocate module code: %w", err)
		}
	}
	for _, p := range m.categories[relocate.CategoryPytest] {
		dest, _ := m.classifier.Destination(p)
		if err := resolver.AssignTest(p, dest); err != nil {
			return nil, fmt.Errorf("relocate tests: %w", err)
		}
	}
	for _, p := range m.categories[relocate.CategoryNonPytest] {
		dest, ok := m.classifier.Destination(p)
		if !ok {
			continue
		}
		if err := resolver.AssignTest(p, dest); err != nil {
			return nil, fmt.Errorf("relocate tests: %w", err)
		}
	}
	for _, p := range m.categories[relocate.CategoryPytestSupport] {
		dest, _ := m.classifier.Destination(p)
		if err := m.table.Assign(p, dest); err != nil {
			return nil, fmt.Errorf("relocate test support: %w", err)
		}
	}
	for _, p := range m.categories[relocate.CategoryDoc] {
		dest, _ := m.classifier.Destination(p)
		if err := m.table.Assign(p, dest); err != nil {
			return nil, fmt.Errorf("relocate docs: %w", err)
		}
	}
	return m, nil
}

// ExtName returns the extension name the migration targets.
func (m *Migration) ExtName() string {
	return m.extName
}

// Candidates returns the selected paths in sorted order.
func (m *Migration) Candidates() []relocate.Path {
	return m.candidates
}

// Table returns the built rename table.
func (m *Migration) Table() *relocate.Table {
	return m.table
}

// Modules returns the module-code candidates (salt/...).
func (m *Migration) Modules() []relocate.Path {
	return m.categories[relocate.CategoryModule]
}

// Pytests returns the pytest-style test candidates (tests/pytests/...).
func (m *Migration) Pytests() []relocate.Path {
	return m.categories[relocate.CategoryPytest]
}

// NonPytests returns the legacy test candidates (tests/{unit,integration}).
func (m *Migration) NonPytests() []relocate.Path {
	return m.categories[relocate.CategoryNonPytest]
}

// PytestSupport returns the fixture candidates (tests/support/pytest/...).
func (m *Migration) PytestSupport() []relocate.Path {
	return m.categories[relocate.CategoryPytestSupport]
}

// Docs returns the documentation candidates (doc/...).
func (m *Migration) Docs() []relocate.Path {
	return m.categories[relocate.CategoryDoc]
}

// TestFiles returns every candidate under tests/, in the old layout.
func (m *Migration) TestFiles() []relocate.Path {
	var out []relocate.Path
	for _, p := range m.candidates {
		if p.HasPrefix("tests") {
			out = append(out, p)
		}
	}
	return out
}

// ModuleTypes returns the de-pluralized loader family names the module code
// covers, sorted. salt/modules/mysql.py contributes "module", salt/states
// contributes "state".
func (m *Migration) ModuleTypes() []string {
	set := make(map[string]struct{})
	for _, p := range m.categories[relocate.CategoryModule] {
		set[strings.TrimRight(p[1], "s")] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for typ := range set {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// LoaderTypes is ModuleTypes without "util": the families a scaffold needs
// loader entry points for. Utility modules are plain imports.
func (m *Migration) LoaderTypes() []string {
	out := make([]string, 0)
	for _, typ := range m.ModuleTypes() {
		if typ != "util" {
			out = append(out, typ)
		}
	}
	return out
}

// ModuleImports maps old dotted module names to new ones for every
// relocated module-code file. The src segment is not part of an import
// path, so salt/modules/mysql.py maps to saltext.<name>.modules.mysql.
func (m *Migration) ModuleImports() map[string]string {
	mods := m.categories[relocate.CategoryModule]
	out := make(map[string]string, len(mods))
	for _, p := range mods {
		newPath, ok := m.table.Lookup(p)
		if !ok {
			continue
		}
		out[p.DottedModule(0)] = newPath.DottedModule(1)
	}
	return out
}

// TestSupportImports maps relocated fixture modules, old dotted to new
// dotted, for the test-only import rewrite.
func (m *Migration) TestSupportImports() map[string]string {
	support := m.categories[relocate.CategoryPytestSupport]
	out := make(map[string]string, len(support))
	for _, p := range support {
		newPath, ok := m.table.Lookup(p)
		if !ok {
			continue
		}
		out[p.DottedModule(0)] = newPath.DottedModule(0)
	}
	return out
}

// FilterRepoArgs renders the argument list for the external history filter:
// every candidate as --path, renamed ones followed by --path-rename.
func (m *Migration) FilterRepoArgs() []string {
	args := make([]string, 0, len(m.candidates)*2)
	for _, p := range m.candidates {
		args = append(args, "--path", p.String())
		if newPath, ok := m.table.Lookup(p); ok {
			args = append(args, "--path-rename", p.String()+":"+newPath.String())
		}
	}
	return args
}
