// Package report renders migration results for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"saltmigrate/internal/migrate"
	"saltmigrate/internal/relocate"
	"saltmigrate/internal/rewrite"
)

// Printer writes styled report sections to a single destination. Styling
// degrades to plain text when the destination is not a terminal.
type Printer struct {
	w      io.Writer
	styles styles
}

type styles struct {
	// title renders section headings, black on yellow.
	title lipgloss.Style
	// warn renders problem rows in red.
	warn lipgloss.Style
	// alert renders block headers that demand a fix, on a red background.
	alert lipgloss.Style
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w: w,
		styles: styles{
			title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")),
			warn:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
			alert: r.NewStyle().Bold(true).Background(lipgloss.Color("1")),
		},
	}
}

// Summary prints the closing report of a run: the outcome of every
// candidate path, outstanding issues, then the suggested next steps.
func (p *Printer) Summary(res *migrate.Result, nonPytests []relocate.Path, destDir string) {
	d := res.Dunder

	nextSteps := []string{
		fmt.Sprintf("Change into the Saltext workdir: `cd %s`", destDir),
	}
	if contains(res.Migration.ModuleTypes(), "util") {
		nextSteps = append(nextSteps, "Add the utils docs (`refs/utils/index`) to `docs/index.rst`")
	}

	p.mainTitle("➨ Migration summary")

	p.sectionTitle("→ Migrated paths", false)
	for _, o := range res.Outcomes() {
		var text string
		switch o.Outcome {
		case migrate.OutcomeKeep:
			text = fmt.Sprintf("  = %s [Keep]", o.Old.String())
		case migrate.OutcomeConflict:
			text = fmt.Sprintf("  x %s [Rename (CONFLICT)] => %s (conflicting: %s)",
				o.Old.String(), o.New.String(), o.Wanted.String())
		default:
			text = fmt.Sprintf("  ~ %s [Rename] => %s", o.Old.String(), o.New.String())
		}

		newName := o.New.String()
		switch {
		case d.NeedsAction(newName):
			p.warnLine(text + " (* Action required)")
		case d.ActionRecommended(newName):
			p.line(text + " (** Action recommended)")
		default:
			p.line(text)
		}
	}

	outstanding := len(d.Missed()) > 0 || len(d.MissedCritical()) > 0 ||
		len(d.Partial()) > 0 || len(nonPytests) > 0
	if outstanding {
		p.sectionTitle("✗ Outstanding issues to be resolved", true)
		if len(d.MissedCritical()) > 0 {
			p.warnLine("\n  * Ensure the following Salt-internal utils modules don't " +
				"rely on global dunders and/or migrate them and change them locally:\n" +
				renderList(sortedKeys(d.MissedCriticalModules()), 4))
			nextSteps = append(nextSteps, "Fix __utils__ dunder in utils")
		}
		if len(d.Partial()) > 0 {
			p.warnLine("\n  * Rewrite the following migrated utils modules to not rely " +
				"on global dunders:\n" +
				renderList(sortedKeys(d.PartialModules()), 4))
			p.warnLine("\n  * Then ensure the following callers of the utils modules pass in " +
				"the required values:\n" +
				renderList(sortedKeys(d.Partial()), 4))
			nextSteps = append(nextSteps,
				"Remove global dunders from utils modules",
				"Update utils calls after removing dunders",
			)
		}
		if len(nonPytests) > 0 {
			p.warnLine("\n  * Migrate the following non-pytest tests or skip them temporarily:\n" +
				renderList(pathStrings(nonPytests), 4))
			nextSteps = append(nextSteps, "Migrate or skip non-pytests")
		}
	}

	if res.ContainerTests {
		nextSteps = append(nextSteps,
			"Ensure a container runtime is available, the test suite starts salt-factories containers")
	}
	nextSteps = append(nextSteps,
		"Ensure tests are passing: `nox -e tests-3`",
		"Ensure docs are building: `nox -e docs`",
		"Commit the repo: `git add . && git commit -m 'Initial extension layout'`",
		"Apply for a new repository in the `salt-extensions` org (optional)",
	)

	p.sectionTitle(">> Next steps", false)
	p.line(renderList(nextSteps, 2))
}

// RewriteWarnings prints the dunder findings right after the rewrite
// stage, grouped by the utils module they concern.
func (p *Printer) RewriteWarnings(d *rewrite.DunderResult) {
	if len(d.MissedCritical()) > 0 {
		p.alert("✗ Fix REQUIRED:",
			"The following Salt core utils mods require to be "+
				"called via __utils__, which does not work from Saltext utils:\n"+
				renderDictList(d.MissedCriticalModules(), 2))
	}
	if len(d.Partial()) > 0 {
		p.alert("✗ Fix REQUIRED:",
			"The following local utils mods required to be "+
				"called via __utils__, which does not work for Saltext utils. "+
				"Calls were rewritten partly, but you need to refactor the module "+
				"to accept the required values and update the calls again:\n"+
				renderDictList(d.PartialModules(), 2))
	}
	if len(d.Missed()) > 0 {
		p.alert("? Fix recommended:",
			"The following Salt core utils mods require to be "+
				"called via __utils__, calls cannot be rewritten. Consider creating a PR:\n"+
				renderDictList(d.MissedModules(), 2))
	}
}

func (p *Printer) mainTitle(msg string) {
	fmt.Fprint(p.w, "\n\n\n")
	p.line(p.styles.title.Render("============  " + msg + "  ============"))
}

func (p *Printer) sectionTitle(msg string, warn bool) {
	fmt.Fprint(p.w, "\n\n")
	text := "------------  " + msg + "  ------------"
	if warn {
		p.line(p.styles.alert.Render(text))
	} else {
		p.line(p.styles.title.Render(text))
	}
}

func (p *Printer) alert(header, message string) {
	fmt.Fprintln(p.w)
	p.line(p.styles.alert.Render(header))
	if message != "" {
		p.line(message)
	}
}

func (p *Printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *Printer) warnLine(s string) {
	fmt.Fprintln(p.w, p.styles.warn.Render(s))
}

// renderList renders items as indented bullet lines.
func renderList(items []string, indent int) string {
	pad := strings.Repeat(" ", indent)
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(pad)
		b.WriteString("• ")
		b.WriteString(item)
	}
	return b.String()
}

// renderDictList renders a sorted key to sorted-values outline.
func renderDictList(m map[string][]string, indent int) string {
	pad := strings.Repeat(" ", indent)
	var b strings.Builder
	for _, key := range sortedKeys(m) {
		b.WriteString("\n")
		b.WriteString(pad)
		b.WriteString("=> ")
		b.WriteString(key)
		b.WriteString(":\n")
		vals := append([]string(nil), m[key]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(pad)
			b.WriteString("  • ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pathStrings(paths []relocate.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
