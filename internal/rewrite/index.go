package rewrite

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"saltmigrate/internal/pysrc"
)

// LookupError means an indirect call referenced a utility module that was
// found in neither tree. This signals an incomplete path selection, so the
// run aborts rather than skipping the call site.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no utility module found for %q in either tree", e.Name)
}

// ModuleInfo describes one utility module for indirect-call resolution.
type ModuleInfo struct {
	Path           string
	ImportPath     string
	DeclaredName   string
	UsesEnvGlobals bool
	Relocated      bool
}

// ModuleIndex resolves the module half of a "module.function" key against
// the utility modules of the destination tree and the legacy tree. The
// index is built once before any rewrite starts and is read-only after.
type ModuleIndex struct {
	extName  string
	byImport map[string]*ModuleInfo
	dest     []*ModuleInfo
	legacy   []*ModuleInfo
}

// NewModuleIndex scans <saltRoot>/salt/utils and
// <destRoot>/src/saltext/<extName>/utils. Either directory may be absent.
// A file that does not parse aborts the build.
func NewModuleIndex(ctx context.Context, parser *pysrc.Parser, saltRoot, destRoot, extName string, envGlobals map[string]struct{}) (*ModuleIndex, error) {
	ix := &ModuleIndex{
		extName:  extName,
		byImport: make(map[string]*ModuleInfo),
	}
	dest, err := scanUtils(ctx, parser, filepath.Join(destRoot, "src"), filepath.Join(destRoot, "src", "saltext", extName, "utils"), true, envGlobals)
	if err != nil {
		return nil, err
	}
	legacy, err := scanUtils(ctx, parser, saltRoot, filepath.Join(saltRoot, "salt", "utils"), false, envGlobals)
	if err != nil {
		return nil, err
	}
	ix.dest = dest
	ix.legacy = legacy
	for _, info := range append(append([]*ModuleInfo{}, dest...), legacy...) {
		ix.byImport[info.ImportPath] = info
	}
	return ix, nil
}

func scanUtils(ctx context.Context, parser *pysrc.Parser, base, dir string, relocated bool, envGlobals map[string]struct{}) ([]*ModuleInfo, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var mods []*ModuleInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}
		f, err := parser.ParseFile(ctx, path)
		if err != nil {
			return err
		}
		analysis := pysrc.Analyze(f, envGlobals)
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		importPath := strings.ReplaceAll(filepath.ToSlash(strings.TrimSuffix(rel, ".py")), "/", ".")
		stem := strings.TrimSuffix(filepath.Base(path), ".py")
		declared := analysis.DeclaredName
		if declared == "" {
			declared = stem
		}
		mods = append(mods, &ModuleInfo{
			Path:           path,
			ImportPath:     importPath,
			DeclaredName:   declared,
			UsesEnvGlobals: analysis.UsesEnvGlobals,
			Relocated:      relocated,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(mods, func(i, j int) bool {
		return mods[i].ImportPath < mods[j].ImportPath
	})
	return mods, nil
}

// Resolve maps the module part of an indirect call key to a ModuleInfo.
// Exact import paths win over declared-name matches, and the destination
// tree wins over the legacy tree.
func (ix *ModuleIndex) Resolve(name string) (*ModuleInfo, error) {
	if info, ok := ix.byImport["saltext."+ix.extName+".utils."+name]; ok {
		return info, nil
	}
	if info, ok := ix.byImport["salt.utils."+name]; ok {
		return info, nil
	}
	declared := strings.SplitN(name, ".", 2)[0]
	for _, info := range ix.dest {
		if info.DeclaredName == declared {
			return info, nil
		}
	}
	for _, info := range ix.legacy {
		if info.DeclaredName == declared {
			return info, nil
		}
	}
	return nil, &LookupError{Name: name}
}

// Len returns the number of indexed modules.
func (ix *ModuleIndex) Len() int {
	return len(ix.byImport)
}
