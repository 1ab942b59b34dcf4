package rewrite

import "sort"

// DunderResult accumulates the outcome of one dunder-call rewrite pass.
// Keys are file paths relative to the destination root in slash form,
// values are the dotted import paths of the utility modules involved.
//
// Three buckets, mirroring how urgent the manual follow-up is:
//   - missedCritical: calls into legacy utility modules that depend on
//     loader state, made from extension utility code. Extension utils are
//     never loader-managed, so these calls break outright.
//   - partial: calls into relocated utility modules that depend on loader
//     state. The call was rewritten, but the module still needs refactoring
//     to accept its inputs explicitly.
//   - missed: calls into legacy utility modules that depend on loader
//     state, made from loader-managed code. These keep working until the
//     indirection is removed upstream, so they are recommendations only.
type DunderResult struct {
	missed         map[string]map[string]struct{}
	missedCritical map[string]map[string]struct{}
	partial        map[string]map[string]struct{}

	// Rewritten counts every call site that was mechanically rewritten,
	// clean and partial alike.
	Rewritten int
}

// NewDunderResult returns an empty result.
func NewDunderResult() *DunderResult {
	return &DunderResult{
		missed:         make(map[string]map[string]struct{}),
		missedCritical: make(map[string]map[string]struct{}),
		partial:        make(map[string]map[string]struct{}),
	}
}

func record(m map[string]map[string]struct{}, file, importPath string) {
	set, ok := m[file]
	if !ok {
		set = make(map[string]struct{})
		m[file] = set
	}
	set[importPath] = struct{}{}
}

// RecordMissed notes an unrewritable call from loader-managed code.
func (r *DunderResult) RecordMissed(file, importPath string) {
	record(r.missed, file, importPath)
}

// RecordMissedCritical notes an unrewritable call from extension utility
// code.
func (r *DunderResult) RecordMissedCritical(file, importPath string) {
	record(r.missedCritical, file, importPath)
}

// RecordPartial notes a rewritten call whose target still depends on loader
// state.
func (r *DunderResult) RecordPartial(file, importPath string) {
	record(r.partial, file, importPath)
}

// Missed returns file -> sorted import paths.
func (r *DunderResult) Missed() map[string][]string {
	return flatten(r.missed)
}

// MissedCritical returns file -> sorted import paths.
func (r *DunderResult) MissedCritical() map[string][]string {
	return flatten(r.missedCritical)
}

// Partial returns file -> sorted import paths.
func (r *DunderResult) Partial() map[string][]string {
	return flatten(r.partial)
}

// MissedModules inverts Missed: import path -> sorted files.
func (r *DunderResult) MissedModules() map[string][]string {
	return invert(r.missed)
}

// MissedCriticalModules inverts MissedCritical.
func (r *DunderResult) MissedCriticalModules() map[string][]string {
	return invert(r.missedCritical)
}

// PartialModules inverts Partial.
func (r *DunderResult) PartialModules() map[string][]string {
	return invert(r.partial)
}

// NeedsAction reports whether file carries an issue that must be fixed
// before the extension works: a critical miss or a partial rewrite.
func (r *DunderResult) NeedsAction(file string) bool {
	return len(r.missedCritical[file]) > 0 || len(r.partial[file]) > 0
}

// ActionRecommended reports whether file carries a non-critical miss.
func (r *DunderResult) ActionRecommended(file string) bool {
	return len(r.missed[file]) > 0
}

// Empty reports whether the pass found nothing to flag.
func (r *DunderResult) Empty() bool {
	return len(r.missed) == 0 && len(r.missedCritical) == 0 && len(r.partial) == 0
}

func flatten(m map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(m))
	for file, set := range m {
		out[file] = sortedSet(set)
	}
	return out
}

func invert(m map[string]map[string]struct{}) map[string][]string {
	inverted := make(map[string]map[string]struct{})
	for file, set := range m {
		for importPath := range set {
			record(inverted, importPath, file)
		}
	}
	return flatten(inverted)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
