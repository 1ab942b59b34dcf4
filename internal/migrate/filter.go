// Package migrate turns a candidate path selection into a fully resolved
// migration: the rename table, the derived import mappings, and the
// argument list for the external history filter.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"saltmigrate/internal/relocate"
)

// DefaultDropPattern removes paths that are never worth migrating from the
// match-derived candidates: CI config, doc build machinery, loader package
// markers and shared test conftests. Explicit include patterns bypass it.
const DefaultDropPattern = `^(.github|doc/ref|debian/|doc/locale|doc/_themes|salt/([^/]+/)?__init__.py|tests/(pytests/)?(unit|functional|integration)/conftest.py)`

// ErrNoCandidates means the filter selected nothing; a migration over an
// empty set is always a mistake in the match terms.
var ErrNoCandidates = errors.New("no matching paths found")

// Path-size reports written by `git filter-repo --analyze`. Both carry two
// header lines, then one file per line with the path as the last
// whitespace-separated field.
const (
	allSizesFile      = "path-all-sizes.txt"
	deletedSizesFile  = "path-deleted-sizes.txt"
	reportHeaderLines = 2
)

// Filter selects candidate paths from the history analysis reports. Match
// terms are plain substrings over the whole report line, include and
// exclude patterns are globs over the path where `*` crosses slashes.
type Filter struct {
	terms   []string
	include []glob.Glob
	exclude []glob.Glob
	drop    *regexp.Regexp
	log     *slog.Logger
}

// NewFilter compiles the filter vocabulary. With no match terms the
// extension name itself is the term; an empty dropPattern selects
// DefaultDropPattern.
func NewFilter(extName string, match, include, exclude []string, dropPattern string, log *slog.Logger) (*Filter, error) {
	if len(match) == 0 {
		match = []string{extName}
	}
	if dropPattern == "" {
		dropPattern = DefaultDropPattern
	}
	drop, err := regexp.Compile(dropPattern)
	if err != nil {
		return nil, fmt.Errorf("compile drop pattern: %w", err)
	}
	inc, err := compileGlobs(include)
	if err != nil {
		return nil, err
	}
	exc, err := compileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	return &Filter{
		terms:   match,
		include: inc,
		exclude: exc,
		drop:    drop,
		log:     log,
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile glob %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Candidates reads both path-size reports under analysisDir and returns the
// selected paths sorted. Matched paths run through the drop pattern,
// included paths do not, excluded paths are removed last.
func (f *Filter) Candidates(analysisDir string) ([]relocate.Path, error) {
	set := make(map[string]struct{})
	for _, name := range []string{allSizesFile, deletedSizesFile} {
		lines, err := readSizeReport(filepath.Join(analysisDir, name))
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			path := fields[len(fields)-1]
			if f.matchesTerm(line) && !f.drop.MatchString(path) {
				set[path] = struct{}{}
			}
			if matchAny(f.include, path) {
				set[path] = struct{}{}
			}
		}
	}
	for path := range set {
		if matchAny(f.exclude, path) {
			delete(set, path)
		}
	}
	if len(set) == 0 {
		return nil, ErrNoCandidates
	}

	paths := make([]relocate.Path, 0, len(set))
	for path := range set {
		paths = append(paths, relocate.ParsePath(path))
	}
	relocate.SortPaths(paths)
	f.log.Debug("selected candidate paths", "count", len(paths), "terms", f.terms)
	return paths, nil
}

func (f *Filter) matchesTerm(line string) bool {
	for _, term := range f.terms {
		if strings.Contains(line, term) {
			return true
		}
	}
	return false
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

func readSizeReport(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read path analysis: %w", err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) <= reportHeaderLines {
		return nil, nil
	}
	return lines[reportHeaderLines:], nil
}
