package rewrite

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"saltmigrate/internal/pysrc"
)

// DunderRewriter replaces indirect __utils__["module.function"](...) calls
// in the destination tree's code with direct imports and calls. Calls whose
// target cannot run outside the loader are left alone and recorded instead.
type DunderRewriter struct {
	parser   *pysrc.Parser
	index    *ModuleIndex
	destRoot string
	result   *DunderResult
	log      *slog.Logger
}

// NewDunderRewriter builds a rewriter over a fully populated index.
func NewDunderRewriter(parser *pysrc.Parser, index *ModuleIndex, destRoot string, log *slog.Logger) *DunderRewriter {
	return &DunderRewriter{
		parser:   parser,
		index:    index,
		destRoot: destRoot,
		result:   NewDunderResult(),
		log:      log,
	}
}

// Result returns the accumulated classification outcome.
func (r *DunderRewriter) Result() *DunderResult {
	return r.result
}

// Tree rewrites every Python file under <destRoot>/src in path order.
func (r *DunderRewriter) Tree(ctx context.Context) error {
	root := filepath.Join(r.destRoot, "src")
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}
		_, err = r.File(ctx, path)
		return err
	})
}

// File rewrites one file in place and reports whether it changed. Lookup
// failures and malformed keys abort; classification outcomes never do.
func (r *DunderRewriter) File(ctx context.Context, path string) (bool, error) {
	f, err := r.parser.ParseFile(ctx, path)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(r.destRoot, path)
	if err != nil {
		return false, err
	}
	rel = filepath.ToSlash(rel)

	var edits []pysrc.Edit
	imported := make(map[string]struct{})
	for _, call := range pysrc.FindAll(f.Root(), "call") {
		key, ok := dunderUtilsKey(f, call)
		if !ok {
			continue
		}
		mod, funcName, err := splitKey(key)
		if err != nil {
			return false, fmt.Errorf("%s: %w", path, err)
		}
		info, err := r.index.Resolve(mod)
		if err != nil {
			return false, fmt.Errorf("%s: %w", path, err)
		}
		if info.UsesEnvGlobals && !info.Relocated {
			// The target stays inside the legacy tree; rewriting the call
			// would not make its loader state available.
			if underDestUtils(rel) {
				r.result.RecordMissedCritical(rel, info.ImportPath)
			} else {
				r.result.RecordMissed(rel, info.ImportPath)
			}
			continue
		}
		if info.UsesEnvGlobals {
			r.result.RecordPartial(rel, info.ImportPath)
		}
		fn := call.ChildByFieldName("function")
		edits = append(edits, pysrc.Edit{
			Start: fn.StartByte(),
			End:   fn.EndByte(),
			Text:  info.ImportPath + "." + funcName,
		})
		if _, done := imported[info.ImportPath]; !done {
			if e, add := pysrc.EnsureImport(f, info.ImportPath); add {
				edits = append(edits, e)
			}
			imported[info.ImportPath] = struct{}{}
		}
		r.result.Rewritten++
	}
	if len(edits) == 0 {
		return false, nil
	}
	out, err := pysrc.Apply(f.Src, edits)
	if err != nil {
		return false, fmt.Errorf("apply edits to %s: %w", path, err)
	}
	if err := writeBack(path, out); err != nil {
		return false, err
	}
	r.log.Debug("rewrote indirect utility calls", "file", rel, "imports", len(imported))
	return true, nil
}

// dunderUtilsKey matches calls of the shape __utils__["module.function"](...)
// and returns the literal key. Non-literal subscripts do not match the
// shape and are skipped.
func dunderUtilsKey(f *pysrc.File, call *sitter.Node) (string, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "subscript" {
		return "", false
	}
	value := fn.ChildByFieldName("value")
	if value == nil || value.Type() != "identifier" || f.Text(value) != "__utils__" {
		return "", false
	}
	sub := fn.ChildByFieldName("subscript")
	if sub == nil || sub.Type() != "string" {
		return "", false
	}
	return pysrc.StringLiteral(f.Text(sub))
}

func splitKey(key string) (mod, funcName string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("indirect utility key %q is not of the form module.function", key)
	}
	return parts[0], parts[1], nil
}

// underDestUtils reports whether a destination-relative path is extension
// utility code (src/saltext/<name>/utils/...).
func underDestUtils(rel string) bool {
	segs := strings.Split(rel, "/")
	return len(segs) > 4 && segs[0] == "src" && segs[1] == "saltext" && segs[3] == "utils"
}

func writeBack(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
