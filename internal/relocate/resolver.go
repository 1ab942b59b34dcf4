package relocate

import (
	"errors"
	"fmt"
)

// Resolver layers the test collision policy on top of a Table. Pytest-style
// tests land on the same paths their legacy counterparts already occupy, so
// a direct assignment can fail where module renames cannot.
type Resolver struct {
	table *Table
	avoid bool
}

// NewResolver wraps a table. When avoid is set, every test assignment takes
// the disambiguated names up front instead of probing for a collision
// first. Historic collisions (both files touched by the same commit at some
// point) cannot be detected reliably from the current tree, so callers use
// avoid as an escape hatch when a run trips over one.
func NewResolver(t *Table, avoid bool) *Resolver {
	return &Resolver{table: t, avoid: avoid}
}

// AssignTest records old -> new, disambiguating when the destination is
// taken. The occupant moves aside to <stem>_old and the incoming test takes
// <stem>_pytest, with the originally wanted destination recorded as a
// conflict. The decision is made per pair: a collision on one test never
// changes how later tests are assigned. A collision while placing the
// disambiguated names is fatal.
func (r *Resolver) AssignTest(old, new Path) error {
	if !r.avoid {
		err := r.table.Assign(old, new)
		if err == nil || !errors.Is(err, ErrTargetPathExists) {
			return err
		}
		r.table.RecordConflict(old, new)
	}
	aside := new.WithStem(new.Stem() + "_old")
	if err := r.table.Assign(new, aside); err != nil {
		return fmt.Errorf("move occupant aside: %w", err)
	}
	renamed := new.WithStem(new.Stem() + "_pytest")
	if err := r.table.Assign(old, renamed); err != nil {
		return fmt.Errorf("place disambiguated test: %w", err)
	}
	return nil
}
