package rewrite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saltmigrate/internal/pysrc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDunderRewriter(t *testing.T, saltFiles, destFiles map[string]string) (*DunderRewriter, string) {
	t.Helper()
	saltRoot, destRoot := fixtureRoots(t, saltFiles, destFiles)
	parser := pysrc.NewParser()
	idx, err := NewModuleIndex(context.Background(), parser, saltRoot, destRoot, "mysql",
		pysrc.EnvGlobalSet(pysrc.DefaultEnvGlobals()))
	if err != nil {
		t.Fatalf("NewModuleIndex failed: %v", err)
	}
	return NewDunderRewriter(parser, idx, destRoot, discardLogger()), destRoot
}

func readBack(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", rel, err)
	}
	return string(data)
}

func TestDunderRewriteClean(t *testing.T) {
	rw, destRoot := newDunderRewriter(t, nil, map[string]string{
		"src/saltext/mysql/utils/mysql.py": "def quote(s):\n    return s\n",
		"src/saltext/mysql/modules/mysqlmod.py": `"""Manage MySQL databases."""

import logging


def run(query):
    return __utils__["mysql.quote"](query)
`,
	})

	if err := rw.Tree(context.Background()); err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	got := readBack(t, destRoot, "src/saltext/mysql/modules/mysqlmod.py")
	if !strings.Contains(got, "saltext.mysql.utils.mysql.quote(query)") {
		t.Errorf("rewritten call missing:\n%s", got)
	}
	if !strings.Contains(got, "import saltext.mysql.utils.mysql") {
		t.Errorf("direct import missing:\n%s", got)
	}
	if strings.Contains(got, "__utils__") {
		t.Errorf("indirect call left behind:\n%s", got)
	}

	res := rw.Result()
	if res.Rewritten != 1 {
		t.Errorf("Rewritten = %d, want 1", res.Rewritten)
	}
	if !res.Empty() {
		t.Errorf("result has issues: missed=%v critical=%v partial=%v",
			res.Missed(), res.MissedCritical(), res.Partial())
	}
}

func TestDunderRewriteSharedImport(t *testing.T) {
	rw, destRoot := newDunderRewriter(t, nil, map[string]string{
		"src/saltext/mysql/utils/mysql.py": "def quote(s):\n    return s\n\n\ndef escape(s):\n    return s\n",
		"src/saltext/mysql/modules/mysqlmod.py": `import logging


def run(query):
    return __utils__["mysql.quote"](query)


def sanitize(value):
    return __utils__["mysql.escape"](value)
`,
	})

	if err := rw.Tree(context.Background()); err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	got := readBack(t, destRoot, "src/saltext/mysql/modules/mysqlmod.py")
	if n := strings.Count(got, "import saltext.mysql.utils.mysql"); n != 1 {
		t.Errorf("import inserted %d times, want 1:\n%s", n, got)
	}
	if !strings.Contains(got, "saltext.mysql.utils.mysql.escape(value)") {
		t.Errorf("second call not rewritten:\n%s", got)
	}
	if rw.Result().Rewritten != 2 {
		t.Errorf("Rewritten = %d, want 2", rw.Result().Rewritten)
	}
}

func TestDunderLegacyLoaderTarget(t *testing.T) {
	rw, destRoot := newDunderRewriter(t,
		map[string]string{
			"salt/utils/cloud.py": "def fire_event(tag):\n    return __opts__[\"sock_dir\"] + tag\n",
		},
		map[string]string{
			"src/saltext/mysql/modules/cloudmod.py": "def notify(tag):\n    return __utils__[\"cloud.fire_event\"](tag)\n",
			"src/saltext/mysql/utils/helper.py":     "def relay(tag):\n    return __utils__[\"cloud.fire_event\"](tag)\n",
		},
	)

	if err := rw.Tree(context.Background()); err != nil {
		t.Fatalf("Tree failed: %v", err)
	}

	modGot := readBack(t, destRoot, "src/saltext/mysql/modules/cloudmod.py")
	if !strings.Contains(modGot, `__utils__["cloud.fire_event"]`) {
		t.Errorf("loader-bound call was rewritten:\n%s", modGot)
	}

	res := rw.Result()
	if res.Rewritten != 0 {
		t.Errorf("Rewritten = %d, want 0", res.Rewritten)
	}
	if got := res.Missed()["src/saltext/mysql/modules/cloudmod.py"]; len(got) != 1 || got[0] != "salt.utils.cloud" {
		t.Errorf("Missed[cloudmod] = %v, want [salt.utils.cloud]", got)
	}
	if got := res.MissedCritical()["src/saltext/mysql/utils/helper.py"]; len(got) != 1 || got[0] != "salt.utils.cloud" {
		t.Errorf("MissedCritical[helper] = %v, want [salt.utils.cloud]", got)
	}
	if !res.NeedsAction("src/saltext/mysql/utils/helper.py") {
		t.Error("NeedsAction(helper) = false, want true")
	}
	if res.NeedsAction("src/saltext/mysql/modules/cloudmod.py") {
		t.Error("NeedsAction(cloudmod) = true, want false")
	}
	if !res.ActionRecommended("src/saltext/mysql/modules/cloudmod.py") {
		t.Error("ActionRecommended(cloudmod) = false, want true")
	}
	if got := res.MissedModules()["salt.utils.cloud"]; len(got) != 1 || got[0] != "src/saltext/mysql/modules/cloudmod.py" {
		t.Errorf("MissedModules[salt.utils.cloud] = %v, want [cloudmod]", got)
	}
}

func TestDunderPartialRewrite(t *testing.T) {
	rw, destRoot := newDunderRewriter(t, nil, map[string]string{
		"src/saltext/mysql/utils/config.py":    "def get(key):\n    return __opts__.get(key)\n",
		"src/saltext/mysql/modules/confmod.py": "def fetch(key):\n    return __utils__[\"config.get\"](key)\n",
	})

	if err := rw.Tree(context.Background()); err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	got := readBack(t, destRoot, "src/saltext/mysql/modules/confmod.py")
	if !strings.Contains(got, "saltext.mysql.utils.config.get(key)") {
		t.Errorf("call not rewritten:\n%s", got)
	}

	res := rw.Result()
	if res.Rewritten != 1 {
		t.Errorf("Rewritten = %d, want 1", res.Rewritten)
	}
	if got := res.Partial()["src/saltext/mysql/modules/confmod.py"]; len(got) != 1 || got[0] != "saltext.mysql.utils.config" {
		t.Errorf("Partial[confmod] = %v, want [saltext.mysql.utils.config]", got)
	}
	if !res.NeedsAction("src/saltext/mysql/modules/confmod.py") {
		t.Error("NeedsAction(confmod) = false, want true")
	}
}

func TestDunderMalformedKey(t *testing.T) {
	rw, _ := newDunderRewriter(t, nil, map[string]string{
		"src/saltext/mysql/modules/badmod.py": "def run():\n    return __utils__[\"justmodule\"]()\n",
	})

	err := rw.Tree(context.Background())
	if err == nil {
		t.Fatal("Tree succeeded on a malformed key, want error")
	}
	if !strings.Contains(err.Error(), "module.function") {
		t.Errorf("error = %v, want mention of the module.function form", err)
	}
}

func TestDunderUnknownModule(t *testing.T) {
	rw, _ := newDunderRewriter(t, nil, map[string]string{
		"src/saltext/mysql/modules/ghostmod.py": "def run():\n    return __utils__[\"ghost.walk\"]()\n",
	})

	err := rw.Tree(context.Background())
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Tree error = %v, want *LookupError", err)
	}
	if lookupErr.Name != "ghost" {
		t.Errorf("LookupError.Name = %q, want %q", lookupErr.Name, "ghost")
	}
}

func TestDunderNonLiteralSubscript(t *testing.T) {
	src := "def run(key):\n    return __utils__[key]()\n"
	rw, destRoot := newDunderRewriter(t, nil, map[string]string{
		"src/saltext/mysql/modules/dynmod.py": src,
	})

	if err := rw.Tree(context.Background()); err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if got := readBack(t, destRoot, "src/saltext/mysql/modules/dynmod.py"); got != src {
		t.Errorf("file changed:\n%s", got)
	}
	if rw.Result().Rewritten != 0 {
		t.Errorf("Rewritten = %d, want 0", rw.Result().Rewritten)
	}
}
