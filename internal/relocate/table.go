package relocate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrTargetPathExists means the destination of a rename is already
	// taken, either by a file that will still exist after the migration or
	// by an earlier assignment.
	ErrTargetPathExists = errors.New("target path exists")
	// ErrNoOpRename means old and new are the same path. Callers must not
	// request renames that change nothing.
	ErrNoOpRename = errors.New("rename is a no-op")
	// ErrAlreadyAssigned means the source path was assigned a destination
	// before. Assignments are immutable once made.
	ErrAlreadyAssigned = errors.New("source already assigned")
)

// ExistsFunc reports whether a candidate path exists on disk. The table
// calls it only for paths inside the candidate set.
type ExistsFunc func(Path) bool

// Rename is one resolved old -> new mapping.
type Rename struct {
	Old Path
	New Path
}

// Table accumulates the rename decisions for one migration run. It enforces
// that no two sources claim the same destination and that a destination is
// only reused when its current occupant is itself being renamed away.
type Table struct {
	renames    map[string]Rename
	targets    map[string]string
	conflicts  map[string]Rename
	candidates map[string]struct{}
	exists     ExistsFunc
}

// NewTable creates a table over the given candidate set. exists may be nil,
// in which case no path is considered present on disk.
func NewTable(candidates []Path, exists ExistsFunc) *Table {
	if exists == nil {
		exists = func(Path) bool { return false }
	}
	t := &Table{
		renames:    make(map[string]Rename),
		targets:    make(map[string]string),
		conflicts:  make(map[string]Rename),
		candidates: make(map[string]struct{}, len(candidates)),
		exists:     exists,
	}
	for _, p := range candidates {
		t.candidates[p.String()] = struct{}{}
	}
	return t
}

// Assign records old -> new. It fails with ErrNoOpRename when the paths are
// equal, ErrAlreadyAssigned when old was assigned before, and
// ErrTargetPathExists when new is claimed by an earlier assignment or
// occupied by a candidate that is not being renamed away.
func (t *Table) Assign(old, new Path) error {
	if old.Equal(new) {
		return fmt.Errorf("assign %s: %w", old, ErrNoOpRename)
	}
	if prev, ok := t.renames[old.String()]; ok {
		return fmt.Errorf("assign %s -> %s (already -> %s): %w", old, new, prev.New, ErrAlreadyAssigned)
	}
	if claimed, ok := t.targets[new.String()]; ok {
		return fmt.Errorf("assign %s -> %s (claimed by %s): %w", old, new, claimed, ErrTargetPathExists)
	}
	if t.occupied(new) {
		return fmt.Errorf("assign %s -> %s: %w", old, new, ErrTargetPathExists)
	}
	t.renames[old.String()] = Rename{Old: old, New: new}
	t.targets[new.String()] = old.String()
	return nil
}

// occupied reports whether new is blocked by a file that will still be
// there after all renames run. A candidate that has its own rename entry
// vacates its slot.
func (t *Table) occupied(new Path) bool {
	key := new.String()
	if _, ok := t.candidates[key]; !ok {
		return false
	}
	if _, away := t.renames[key]; away {
		return false
	}
	return t.exists(new)
}

// RecordConflict remembers that old could not take its preferred destination
// new. Conflicts surface in the summary so a human can audit the fallback
// names the resolver picked.
func (t *Table) RecordConflict(old, new Path) {
	t.conflicts[old.String()] = Rename{Old: old, New: new}
}

// Lookup returns the assigned destination for old.
func (t *Table) Lookup(old Path) (Path, bool) {
	r, ok := t.renames[old.String()]
	if !ok {
		return nil, false
	}
	return r.New, true
}

// Len returns the number of recorded renames.
func (t *Table) Len() int {
	return len(t.renames)
}

// Renames returns all assignments sorted by source path.
func (t *Table) Renames() []Rename {
	out := make([]Rename, 0, len(t.renames))
	for _, r := range t.renames {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Old.String() < out[j].Old.String()
	})
	return out
}

// Conflicts returns the recorded conflicts sorted by source path. New holds
// the destination the source originally wanted, not the one it received.
func (t *Table) Conflicts() []Rename {
	out := make([]Rename, 0, len(t.conflicts))
	for _, c := range t.conflicts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Old.String() < out[j].Old.String()
	})
	return out
}

// Conflicting returns the originally wanted destination for old when the
// resolver had to fall back to a disambiguated name.
func (t *Table) Conflicting(old Path) (Path, bool) {
	c, ok := t.conflicts[old.String()]
	if !ok {
		return nil, false
	}
	return c.New, true
}

// Fingerprint returns a stable hex digest of the table contents. Two runs
// over the same input produce the same fingerprint, which the run log uses
// to spot drift between plans.
func (t *Table) Fingerprint() string {
	var b strings.Builder
	for _, r := range t.Renames() {
		fmt.Fprintf(&b, "%s -> %s\n", r.Old, r.New)
	}
	for _, c := range t.Conflicts() {
		fmt.Fprintf(&b, "conflict %s -> %s\n", c.Old, c.New)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
