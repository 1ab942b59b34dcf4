package relocate

// Category identifies which layout rule family a candidate path falls under.
type Category string

const (
	// CategoryModule is Salt module code (anything under salt/).
	CategoryModule Category = "module"
	// CategoryPytest is a historic pytest-style test under tests/pytests/.
	CategoryPytest Category = "pytest"
	// CategoryNonPytest is a historic non-pytest test under
	// tests/{unit,integration}/.
	CategoryNonPytest Category = "non-pytest"
	// CategoryPytestSupport is a test-support fixture under
	// tests/support/pytest/.
	CategoryPytestSupport Category = "pytest-support"
	// CategoryDoc is documentation under doc/.
	CategoryDoc Category = "doc"
	// CategoryNone marks paths no rule recognizes; they keep their location.
	CategoryNone Category = ""
)

// Classifier maps old Salt checkout paths to their destination inside an
// extension repository. Classification is pure: it never touches the
// filesystem, and the same input always yields the same output.
type Classifier struct {
	extName string
}

// NewClassifier creates a classifier for the named extension. The name
// becomes the namespace segment in src/saltext/<name>/.
func NewClassifier(extName string) *Classifier {
	return &Classifier{extName: extName}
}

// Category returns the rule family for a path. The families are disjoint by
// construction: tests/pytests/, tests/support/pytest/ and
// tests/{unit,integration}/ cannot overlap.
func (c *Classifier) Category(p Path) Category {
	switch {
	case p.HasPrefix("salt") && len(p) >= 2:
		return CategoryModule
	case p.HasPrefix("tests", "pytests") && len(p) >= 3:
		return CategoryPytest
	case p.HasPrefix("tests", "support", "pytest") && len(p) >= 4:
		return CategoryPytestSupport
	case len(p) >= 3 && p[0] == "tests" && (p[1] == "unit" || p[1] == "integration") && p.Ext() == ".py":
		return CategoryNonPytest
	case p.HasPrefix("doc") && len(p) >= 2:
		return CategoryDoc
	default:
		return CategoryNone
	}
}

// Destination computes the new path for p. ok is false when the path keeps
// its current location (unrecognized paths, and non-pytest tests outside the
// provider case). First matching rule wins; rules are checked in the order
// they are documented here.
func (c *Classifier) Destination(p Path) (Path, bool) {
	switch c.Category(p) {
	case CategoryModule:
		return c.moduleDestination(p), true
	case CategoryPytest:
		return c.pytestDestination(p), true
	case CategoryNonPytest:
		// Only the provider layout gets collapsed; everything else stays.
		if p[2] == "cloud" && len(p) >= 4 {
			return Join([]string{"tests", p[1]}, p[3:]), true
		}
		return nil, false
	case CategoryPytestSupport:
		return Join([]string{"tests", "support"}, p[3:]), true
	case CategoryDoc:
		return Join([]string{"docs"}, p[1:]), true
	default:
		return nil, false
	}
}

// moduleDestination relocates salt/ code under src/saltext/<name>/.
//
//	salt/cloud/clouds/ec2.py        -> src/saltext/<name>/clouds/ec2.py
//	salt/client/ssh/wrapper/cp.py   -> src/saltext/<name>/wrapper/cp.py
//	salt/modules/mysql.py           -> src/saltext/<name>/modules/mysql.py
func (c *Classifier) moduleDestination(p Path) Path {
	root := []string{"src", "saltext", c.extName}
	switch {
	case p[1] == "cloud" && len(p) >= 3:
		return Join(root, p[2:])
	case p.HasPrefix("salt", "client", "ssh", "wrapper") && len(p) >= 5:
		return Join(root, p[3:])
	default:
		return Join(root, p[1:])
	}
}

// pytestDestination drops the pytests marker segment. Provider tests lose
// their cloud segment too, and ssh wrapper tests have the ssh segment
// renamed to wrapper in place.
func (c *Classifier) pytestDestination(p Path) Path {
	if len(p) >= 5 && p[3] == "cloud" {
		return Join([]string{"tests", p[2]}, p[4:])
	}
	np := Join([]string{"tests"}, p[2:])
	if p.HasPrefix("tests", "pytests", "integration", "ssh") && len(p) >= 5 {
		np[2] = "wrapper"
	}
	return np
}
