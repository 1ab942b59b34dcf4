package report

import (
	"bytes"
	"strings"
	"testing"

	"saltmigrate/internal/migrate"
	"saltmigrate/internal/relocate"
	"saltmigrate/internal/rewrite"
)

func paths(ss ...string) []relocate.Path {
	out := make([]relocate.Path, len(ss))
	for i, s := range ss {
		out[i] = relocate.ParsePath(s)
	}
	return out
}

func newResult(t *testing.T, candidates []relocate.Path, exists relocate.ExistsFunc) *migrate.Result {
	t.Helper()
	m, err := migrate.NewMigration("mysql", candidates, exists, false)
	if err != nil {
		t.Fatalf("Failed to build migration: %v", err)
	}
	return migrate.NewResult(m)
}

func TestSummaryFullReport(t *testing.T) {
	candidates := paths(
		"README.md",
		"salt/modules/mysql.py",
		"salt/states/mysql.py",
		"tests/pytests/unit/modules/test_mysql.py",
		"tests/unit/modules/test_mysql.py",
	)
	exists := func(p relocate.Path) bool {
		return p.String() == "tests/unit/modules/test_mysql.py"
	}
	res := newResult(t, candidates, exists)
	res.Dunder.RecordPartial("src/saltext/mysql/modules/mysql.py", "saltext.mysql.utils.foo")
	res.Dunder.RecordMissed("src/saltext/mysql/states/mysql.py", "salt.utils.cloud")
	nonPytests := paths("tests/unit/modules/test_mysql_old.py")

	var buf bytes.Buffer
	NewPrinter(&buf).Summary(res, nonPytests, "saltext-mysql")
	out := buf.String()

	for _, want := range []string{
		"============  ➨ Migration summary  ============",
		"------------  → Migrated paths  ------------",
		"  = README.md [Keep]",
		"  ~ salt/modules/mysql.py [Rename] => src/saltext/mysql/modules/mysql.py (* Action required)",
		"  ~ salt/states/mysql.py [Rename] => src/saltext/mysql/states/mysql.py (** Action recommended)",
		"  x tests/pytests/unit/modules/test_mysql.py [Rename (CONFLICT)] => tests/unit/modules/test_mysql_pytest.py (conflicting: tests/unit/modules/test_mysql.py)",
		"  ~ tests/unit/modules/test_mysql.py [Rename] => tests/unit/modules/test_mysql_old.py",
		"------------  ✗ Outstanding issues to be resolved  ------------",
		"  * Rewrite the following migrated utils modules to not rely on global dunders:\n    • saltext.mysql.utils.foo",
		"  * Then ensure the following callers of the utils modules pass in the required values:\n    • src/saltext/mysql/modules/mysql.py",
		"  * Migrate the following non-pytest tests or skip them temporarily:\n    • tests/unit/modules/test_mysql_old.py",
		"------------  >> Next steps  ------------",
		"  • Change into the Saltext workdir: `cd saltext-mysql`",
		"  • Remove global dunders from utils modules",
		"  • Update utils calls after removing dunders",
		"  • Migrate or skip non-pytests",
		"  • Ensure tests are passing: `nox -e tests-3`",
		"  • Apply for a new repository in the `salt-extensions` org (optional)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary output missing %q\nfull output:\n%s", want, out)
		}
	}

	// No utils module migrated, so the utils docs step must stay out.
	if strings.Contains(out, "Add the utils docs") {
		t.Error("Summary suggests utils docs step without migrated utils")
	}
	// Only a missed (non-critical) entry exists, so the critical block
	// must stay out.
	if strings.Contains(out, "Salt-internal utils modules") {
		t.Error("Summary rendered the critical block without critical findings")
	}
}

func TestSummaryCriticalFindingsAlone(t *testing.T) {
	candidates := paths("salt/utils/mysql_support.py")
	res := newResult(t, candidates, func(relocate.Path) bool { return false })
	res.Dunder.RecordMissedCritical("src/saltext/mysql/utils/mysql_support.py", "salt.utils.cloud")

	var buf bytes.Buffer
	NewPrinter(&buf).Summary(res, nil, "saltext-mysql")
	out := buf.String()

	if !strings.Contains(out, "✗ Outstanding issues to be resolved") {
		t.Fatalf("Critical findings alone did not open the outstanding section:\n%s", out)
	}
	if !strings.Contains(out, "  * Ensure the following Salt-internal utils modules don't rely on global dunders and/or migrate them and change them locally:\n    • salt.utils.cloud") {
		t.Errorf("Critical block missing or wrong:\n%s", out)
	}
	if !strings.Contains(out, "(* Action required)") {
		t.Errorf("Critical path row not flagged:\n%s", out)
	}
	if !strings.Contains(out, "  • Fix __utils__ dunder in utils") {
		t.Errorf("Critical next step missing:\n%s", out)
	}
	// The utils module type was migrated, so the docs step applies.
	if !strings.Contains(out, "Add the utils docs (`refs/utils/index`) to `docs/index.rst`") {
		t.Errorf("Utils docs step missing:\n%s", out)
	}
}

func TestSummaryCleanRun(t *testing.T) {
	candidates := paths("README.md", "salt/modules/mysql.py")
	res := newResult(t, candidates, func(relocate.Path) bool { return false })

	var buf bytes.Buffer
	NewPrinter(&buf).Summary(res, nil, "saltext-mysql")
	out := buf.String()

	if strings.Contains(out, "Outstanding issues") {
		t.Errorf("Clean run rendered an outstanding section:\n%s", out)
	}
	if strings.Contains(out, "container runtime") {
		t.Errorf("Clean run suggested container advice:\n%s", out)
	}
	if !strings.Contains(out, "  • Ensure docs are building: `nox -e docs`") {
		t.Errorf("Next steps tail missing:\n%s", out)
	}
}

func TestSummaryContainerAdvice(t *testing.T) {
	candidates := paths("salt/modules/mysql.py")
	res := newResult(t, candidates, func(relocate.Path) bool { return false })
	res.ContainerTests = true

	var buf bytes.Buffer
	NewPrinter(&buf).Summary(res, nil, "saltext-mysql")

	if !strings.Contains(buf.String(), "salt-factories containers") {
		t.Errorf("Container advice missing:\n%s", buf.String())
	}
}

func TestRewriteWarnings(t *testing.T) {
	d := rewrite.NewDunderResult()
	d.RecordMissedCritical("src/saltext/mysql/utils/helper.py", "salt.utils.cloud")
	d.RecordPartial("src/saltext/mysql/modules/mysql.py", "saltext.mysql.utils.config")
	d.RecordMissed("src/saltext/mysql/modules/mysql.py", "salt.utils.vault")

	var buf bytes.Buffer
	NewPrinter(&buf).RewriteWarnings(d)
	out := buf.String()

	if got := strings.Count(out, "✗ Fix REQUIRED:"); got != 2 {
		t.Errorf("Fix REQUIRED headers = %d, want 2:\n%s", got, out)
	}
	if !strings.Contains(out, "? Fix recommended:") {
		t.Errorf("Recommendation header missing:\n%s", out)
	}
	if !strings.Contains(out, "  => salt.utils.cloud:\n    • src/saltext/mysql/utils/helper.py") {
		t.Errorf("Critical module outline missing:\n%s", out)
	}
	if !strings.Contains(out, "  => saltext.mysql.utils.config:\n    • src/saltext/mysql/modules/mysql.py") {
		t.Errorf("Partial module outline missing:\n%s", out)
	}
}

func TestRewriteWarningsQuietOnEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).RewriteWarnings(rewrite.NewDunderResult())

	if buf.Len() != 0 {
		t.Errorf("Empty result produced output: %q", buf.String())
	}
}

func TestRenderList(t *testing.T) {
	got := renderList([]string{"a", "b"}, 4)
	want := "    • a\n    • b"
	if got != want {
		t.Errorf("renderList() = %q, want %q", got, want)
	}

	if got := renderList(nil, 2); got != "" {
		t.Errorf("renderList(nil) = %q, want empty", got)
	}
}

func TestRenderDictList(t *testing.T) {
	got := renderDictList(map[string][]string{
		"salt.utils.cloud": {"b.py", "a.py"},
	}, 2)
	want := "\n  => salt.utils.cloud:\n    • a.py\n    • b.py\n"
	if got != want {
		t.Errorf("renderDictList() = %q, want %q", got, want)
	}
}
