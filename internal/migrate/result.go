package migrate

import (
	"os"
	"path/filepath"
	"strings"

	"saltmigrate/internal/relocate"
	"saltmigrate/internal/rewrite"
)

// Outcome classifies what happened to one candidate path.
type Outcome string

const (
	// OutcomeKeep means no rule renamed the path.
	OutcomeKeep Outcome = "keep"
	// OutcomeRename means the path moved to its computed destination.
	OutcomeRename Outcome = "rename"
	// OutcomeConflict means the computed destination was taken and the path
	// moved to a disambiguated name instead.
	OutcomeConflict Outcome = "rename-conflict"
)

// PathOutcome is one row of the migration summary.
type PathOutcome struct {
	Outcome Outcome
	Old     relocate.Path
	// New equals Old for keeps.
	New relocate.Path
	// Wanted is the destination the path originally asked for; set only for
	// conflicts.
	Wanted relocate.Path
}

// Result ties a built migration to the rewrite outcomes for reporting and
// the run log.
type Result struct {
	Migration *Migration
	Dunder    *rewrite.DunderResult
	// FilesChanged counts files touched by the module-reference rewrite.
	FilesChanged int
	// ContainerTests reports whether any selected test file drives
	// containers through salt-factories.
	ContainerTests bool
}

// NewResult wraps a migration with an empty rewrite outcome.
func NewResult(m *Migration) *Result {
	return &Result{Migration: m, Dunder: rewrite.NewDunderResult()}
}

// Outcomes returns one row per candidate in sorted order.
func (r *Result) Outcomes() []PathOutcome {
	table := r.Migration.Table()
	out := make([]PathOutcome, 0, len(r.Migration.Candidates()))
	for _, p := range r.Migration.Candidates() {
		newPath, renamed := table.Lookup(p)
		if !renamed {
			out = append(out, PathOutcome{Outcome: OutcomeKeep, Old: p, New: p})
			continue
		}
		if wanted, conflicted := table.Conflicting(p); conflicted {
			out = append(out, PathOutcome{Outcome: OutcomeConflict, Old: p, New: newPath, Wanted: wanted})
			continue
		}
		out = append(out, PathOutcome{Outcome: OutcomeRename, Old: p, New: newPath})
	}
	return out
}

// SurvivingNonPytests lists legacy test files that will still exist in the
// destination tree: renamed ones at their new path, the rest in place,
// minus paths a pytest rename landed on (those were replaced, not kept).
// Only files actually present under destRoot count.
func (r *Result) SurvivingNonPytests(destRoot string) []relocate.Path {
	return r.nonPytestSurvivors(func(cur, old relocate.Path) bool {
		_, err := os.Stat(filepath.Join(destRoot, filepath.FromSlash(cur.String())))
		return err == nil
	})
}

// PredictedNonPytests is the plan-time view of SurvivingNonPytests. The
// destination tree does not exist yet, so presence is probed at the legacy
// location in the Salt checkout instead.
func (r *Result) PredictedNonPytests(saltRoot string) []relocate.Path {
	return r.nonPytestSurvivors(func(cur, old relocate.Path) bool {
		_, err := os.Stat(filepath.Join(saltRoot, filepath.FromSlash(old.String())))
		return err == nil
	})
}

func (r *Result) nonPytestSurvivors(present func(cur, old relocate.Path) bool) []relocate.Path {
	table := r.Migration.Table()
	pytests := make(map[string]struct{})
	for _, p := range r.Migration.Pytests() {
		pytests[p.String()] = struct{}{}
	}

	var out []relocate.Path
	for _, p := range r.Migration.NonPytests() {
		cur := p
		if newPath, ok := table.Lookup(p); ok {
			cur = newPath
		}
		if shadowedByPytest(table, pytests, cur) {
			continue
		}
		if present(cur, p) {
			out = append(out, cur)
		}
	}
	relocate.SortPaths(out)
	return out
}

func shadowedByPytest(table *relocate.Table, pytests map[string]struct{}, cur relocate.Path) bool {
	for _, ren := range table.Renames() {
		if _, isPytest := pytests[ren.Old.String()]; !isPytest {
			continue
		}
		if ren.New.Equal(cur) {
			return true
		}
	}
	return false
}

// containerMarker is the fixture call that requires a container runtime on
// the test host.
const containerMarker = "salt_factories.get_container"

// DetectContainerTests reports whether any of the given test files, read
// from the Salt checkout, drives containers through salt-factories. Files
// that are only part of the history are skipped.
func DetectContainerTests(saltRoot string, testFiles []relocate.Path) bool {
	for _, p := range testFiles {
		data, err := os.ReadFile(filepath.Join(saltRoot, filepath.FromSlash(p.String())))
		if err != nil {
			continue
		}
		if strings.Contains(string(data), containerMarker) {
			return true
		}
	}
	return false
}
