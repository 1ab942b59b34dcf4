// Package relocate decides where files from a Salt checkout land inside a
// Salt extension repository. It provides the path classification rules, the
// rename table that accumulates the old-to-new mapping, and the collision
// policy for historic test files that coexisted under two layout conventions.
package relocate

import (
	"path"
	"sort"
	"strings"
)

// Path is a relative file path held as its ordered segments. Two paths are
// equal iff their segment sequences are equal; comparisons never go through
// the filesystem.
type Path []string

// ParsePath splits a slash-separated relative path into segments. Empty
// segments (leading, trailing or doubled slashes) are dropped.
func ParsePath(s string) Path {
	parts := strings.Split(s, "/")
	segs := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		segs = append(segs, part)
	}
	return segs
}

// String renders the path with forward slashes.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Equal reports whether two paths have identical segment sequences.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Name returns the final segment, or "" for an empty path.
func (p Path) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Ext returns the extension of the final segment, including the dot.
func (p Path) Ext() string {
	return path.Ext(p.Name())
}

// Stem returns the final segment with its extension removed.
func (p Path) Stem() string {
	name := p.Name()
	return strings.TrimSuffix(name, path.Ext(name))
}

// WithStem returns a copy of the path whose final segment keeps its
// extension but has its stem replaced.
func (p Path) WithStem(stem string) Path {
	out := make(Path, len(p))
	copy(out, p)
	out[len(out)-1] = stem + p.Ext()
	return out
}

// HasPrefix reports whether the path starts with the given segments.
func (p Path) HasPrefix(segs ...string) bool {
	if len(p) < len(segs) {
		return false
	}
	for i, seg := range segs {
		if p[i] != seg {
			return false
		}
	}
	return true
}

// Join builds a new path from literal segments followed by a tail slice.
// Callers use it to assemble destinations like Join([]string{"src",
// "saltext", name}, p[2:]).
func Join(head []string, tail Path) Path {
	out := make(Path, 0, len(head)+len(tail))
	out = append(out, head...)
	out = append(out, tail...)
	return out
}

// DottedModule returns the dotted module name for a .py path, e.g.
// salt/modules/mysql.py becomes salt.modules.mysql. The skip parameter drops
// leading segments first (src/saltext/... paths import without "src").
func (p Path) DottedModule(skip int) string {
	if skip >= len(p) {
		return ""
	}
	segs := make([]string, 0, len(p)-skip)
	segs = append(segs, p[skip:len(p)-1]...)
	segs = append(segs, p.Stem())
	return strings.Join(segs, ".")
}

// SortPaths orders paths by their string form, in place.
func SortPaths(paths []Path) {
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].String() < paths[j].String()
	})
}
